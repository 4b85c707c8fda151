package dao

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	st := NewSessionStore(nil)

	sess, gen := st.LoadWithGeneration()
	assert.Nil(t, sess)
	assert.Equal(t, uint64(0), gen)

	a := &Session{StartBlock: 1}
	require.Equal(t, uint64(1), st.Replace(a))

	sess, gen = st.LoadWithGeneration()
	assert.Same(t, a, sess)
	assert.Equal(t, uint64(1), gen)

	require.Equal(t, uint64(2), st.Clear())
	assert.Nil(t, st.Load())
	assert.Equal(t, uint64(2), st.Generation())
}

func TestSessionStoreGenerationMatchesSession(t *testing.T) {
	st := NewSessionStore(nil)

	const replacements = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= replacements; i++ {
			// sessions carry the generation they are stored under
			st.Replace(&Session{StartBlock: uint64(i)})
		}
	}()

	for {
		sess, gen := st.LoadWithGeneration()
		if sess != nil {
			require.Equal(t, gen, sess.StartBlock)
		}
		if gen == replacements {
			break
		}
	}

	wg.Wait()
}
