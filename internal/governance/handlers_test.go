package governance

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/citizenwallet/boxdao/internal/services/db/govdb"
	"github.com/citizenwallet/boxdao/pkg/automation"
	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/dao/daotest"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type membershipFunc func(ctx context.Context) (dao.MembershipStatus, error)

func (f membershipFunc) Status(ctx context.Context) (dao.MembershipStatus, error) {
	return f(ctx)
}

type historyFunc func(ctx context.Context, id *big.Int, limit int) ([]govdb.SnapshotRow, error)

func (f historyFunc) History(ctx context.Context, id *big.Int, limit int) ([]govdb.SnapshotRow, error) {
	return f(ctx, id, limit)
}

type response struct {
	ResponseType string          `json:"response_type"`
	Object       json.RawMessage `json:"object"`
	Array        json.RawMessage `json:"array"`
	Meta         json.RawMessage `json:"meta"`
	Error        string          `json:"error"`
}

type proposalJSON struct {
	Proposal struct {
		ID          *big.Int `json:"proposal_id"`
		Description string   `json:"description"`
	} `json:"proposal"`
	State   string `json:"state"`
	CanVote bool   `json:"can_vote"`
}

type env struct {
	f       *daotest.Fixture
	store   *dao.SessionStore
	tracked *automation.TrackedSet
	members membershipFunc
	history History
}

func newEnv(t *testing.T) *env {
	t.Helper()

	f := daotest.NewFixture(100)
	e := &env{
		f:       f,
		store:   dao.NewSessionStore(f.Session),
		tracked: automation.NewTrackedSet(),
		members: func(ctx context.Context) (dao.MembershipStatus, error) {
			return dao.MembershipStatus{Account: daotest.Account, IsMember: true, Weight: big.NewInt(3), AsOfBlock: 99}, nil
		},
	}

	gen := e.store.Generation()
	for i, s := range []dao.ProposalState{dao.StateExecuted, dao.StateActive, dao.StateQueued} {
		rec := &dao.ProposalRecord{ID: big.NewInt(int64(0xA0 + i)), Description: "proposal"}
		e.tracked.Track(gen, []*dao.ProposalRecord{rec})
		e.tracked.Replace(gen, dao.ProposalSnapshot{Record: rec, State: s, Votes: dao.NewVotes()})
	}

	return e
}

func (e *env) do(t *testing.T, path string) (*httptest.ResponseRecorder, response) {
	t.Helper()

	cr := chi.NewRouter()
	NewService(e.store, e.tracked, e.members, e.history, nil).Routes(cr)

	rr := httptest.NewRecorder()
	cr.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

	var r response
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &r))
	}

	return rr, r
}

func govPath(suffix string) string {
	return "/gov/" + strings.ToLower(daotest.GovernorAddress.Hex()) + suffix
}

func TestGetGov(t *testing.T) {
	e := newEnv(t)

	rr, r := e.do(t, govPath(""))
	require.Equal(t, http.StatusOK, rr.Code)

	var info GovernorInfo
	require.NoError(t, json.Unmarshal(r.Object, &info))
	assert.Equal(t, "BoxGovernor", info.Name)
	assert.Equal(t, daotest.GovernorAddress, info.Governor)
	assert.Equal(t, daotest.BoxAddress, info.Box)
	assert.Equal(t, daotest.Account, info.Account)
	assert.False(t, info.ReadOnly)
	assert.Equal(t, 3, info.Tracked)

	t.Run("other governor", func(t *testing.T) {
		rr, r := e.do(t, "/gov/0x0000000000000000000000000000000000000001")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "governor not found", r.Error)
	})

	t.Run("address casing", func(t *testing.T) {
		for _, addr := range []string{
			daotest.GovernorAddress.Hex(),
			"0x" + strings.ToUpper(daotest.GovernorAddress.Hex()[2:]),
		} {
			rr, _ := e.do(t, "/gov/"+addr)
			assert.Equal(t, http.StatusOK, rr.Code, addr)
		}
	})

	t.Run("malformed address", func(t *testing.T) {
		for _, addr := range []string{"governor", "0x", daotest.GovernorAddress.Hex()[:20]} {
			rr, r := e.do(t, "/gov/"+addr)
			assert.Equal(t, http.StatusNotFound, rr.Code, addr)
			assert.Equal(t, "governor not found", r.Error)
		}
	})

	t.Run("name unavailable", func(t *testing.T) {
		e := newEnv(t)
		e.f.Governor.SetReadErr(errors.New("connection refused"))

		rr, r := e.do(t, govPath(""))
		require.Equal(t, http.StatusOK, rr.Code)

		var info GovernorInfo
		require.NoError(t, json.Unmarshal(r.Object, &info))
		assert.Empty(t, info.Name)
		assert.Equal(t, daotest.GovernorAddress, info.Governor)
	})

	t.Run("idle", func(t *testing.T) {
		e := newEnv(t)
		e.store.Clear()

		rr, r := e.do(t, govPath(""))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, dao.ErrUnsupportedChain.Error(), r.Error)
	})
}

func TestGetGovProposals(t *testing.T) {
	e := newEnv(t)

	rr, r := e.do(t, govPath("/proposals"))
	require.Equal(t, http.StatusOK, rr.Code)

	var props []proposalJSON
	require.NoError(t, json.Unmarshal(r.Array, &props))
	require.Len(t, props, 3)

	// newest first
	assert.Equal(t, int64(0xA2), props[0].Proposal.ID.Int64())
	assert.Equal(t, "Queued", props[0].State)
	assert.Equal(t, int64(0xA0), props[2].Proposal.ID.Int64())

	// votes only while active
	assert.False(t, props[0].CanVote)
	assert.True(t, props[1].CanVote)

	t.Run("state filter", func(t *testing.T) {
		rr, r := e.do(t, govPath("/proposals?state=active"))
		require.Equal(t, http.StatusOK, rr.Code)

		var props []proposalJSON
		require.NoError(t, json.Unmarshal(r.Array, &props))
		require.Len(t, props, 1)
		assert.Equal(t, "Active", props[0].State)
	})

	t.Run("invalid state", func(t *testing.T) {
		rr, _ := e.do(t, govPath("/proposals?state=voting"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("pagination", func(t *testing.T) {
		rr, r := e.do(t, govPath("/proposals?limit=1&offset=1"))
		require.Equal(t, http.StatusOK, rr.Code)

		var props []proposalJSON
		require.NoError(t, json.Unmarshal(r.Array, &props))
		require.Len(t, props, 1)
		assert.Equal(t, int64(0xA1), props[0].Proposal.ID.Int64())
		assert.JSONEq(t, `{"limit":1,"offset":1,"total":3}`, string(r.Meta))
	})
}

func TestGetGovProposal(t *testing.T) {
	e := newEnv(t)

	for _, id := range []string{"0xa1", "0xA1", "161"} {
		rr, r := e.do(t, govPath("/proposals/"+id))
		require.Equal(t, http.StatusOK, rr.Code, id)

		var p proposalJSON
		require.NoError(t, json.Unmarshal(r.Object, &p))
		assert.Equal(t, int64(0xA1), p.Proposal.ID.Int64())
		assert.Equal(t, "Active", p.State)
	}

	rr, _ := e.do(t, govPath("/proposals/0xff"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = e.do(t, govPath("/proposals/proposal"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetGovProposalHistory(t *testing.T) {
	e := newEnv(t)

	rr, _ := e.do(t, govPath("/proposals/0xa1/history"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var gotID *big.Int
	var gotLimit int
	e.history = historyFunc(func(ctx context.Context, id *big.Int, limit int) ([]govdb.SnapshotRow, error) {
		gotID, gotLimit = id, limit
		return []govdb.SnapshotRow{
			{ProposalID: "0xa1", State: dao.StateActive, AsOfBlock: 90},
			{ProposalID: "0xa1", State: dao.StatePending, AsOfBlock: 80},
		}, nil
	})

	rr, r := e.do(t, govPath("/proposals/0xa1/history?limit=5"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(0xA1), gotID.Int64())
	assert.Equal(t, 5, gotLimit)

	var rows []govdb.SnapshotRow
	require.NoError(t, json.Unmarshal(r.Array, &rows))
	assert.Len(t, rows, 2)

	e.history = historyFunc(func(ctx context.Context, id *big.Int, limit int) ([]govdb.SnapshotRow, error) {
		return nil, errors.New("connection refused")
	})

	rr, _ = e.do(t, govPath("/proposals/0xa1/history"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetBox(t *testing.T) {
	e := newEnv(t)
	e.f.Box.Store([]string{"blue", "green"})

	rr, r := e.do(t, govPath("/box"))
	require.Equal(t, http.StatusOK, rr.Code)

	var v BoxValue
	require.NoError(t, json.Unmarshal(r.Object, &v))
	assert.Equal(t, daotest.BoxAddress, v.Address)
	assert.Equal(t, []string{"blue", "green"}, v.Value)

	e.f.Box.Err = errors.New("dial tcp: connection refused")

	rr, r = e.do(t, govPath("/box"))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, dao.ErrRemoteUnavailable.Error(), r.Error)
}

func TestGetMembership(t *testing.T) {
	e := newEnv(t)

	rr, r := e.do(t, govPath("/membership"))
	require.Equal(t, http.StatusOK, rr.Code)

	var status struct {
		Account   string   `json:"account"`
		IsMember  bool     `json:"is_member"`
		Weight    *big.Int `json:"weight"`
		AsOfBlock uint64   `json:"as_of_block"`
	}
	require.NoError(t, json.Unmarshal(r.Object, &status))
	assert.True(t, status.IsMember)
	assert.Equal(t, int64(3), status.Weight.Int64())
	assert.Equal(t, uint64(99), status.AsOfBlock)

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"exhausted", dao.ErrExhausted, http.StatusServiceUnavailable},
		{"unsupported", dao.ErrUnsupportedChain, http.StatusServiceUnavailable},
		{"remote", errors.New("i/o timeout"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.members = func(ctx context.Context) (dao.MembershipStatus, error) {
				return dao.MembershipStatus{}, tt.err
			}

			rr, _ := e.do(t, govPath("/membership"))
			assert.Equal(t, tt.code, rr.Code)
		})
	}
}

func TestParseProposalID(t *testing.T) {
	id, err := parseProposalID("0x00ab")
	require.NoError(t, err)
	assert.Equal(t, int64(0xAB), id.Int64())

	_, err = parseProposalID("-1")
	assert.ErrorIs(t, err, errInvalidProposal)

	_, err = parseProposalID("0xzz")
	assert.ErrorIs(t, err, errInvalidProposal)
}
