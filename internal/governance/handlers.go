package governance

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	com "github.com/citizenwallet/boxdao/internal/common"
	"github.com/citizenwallet/boxdao/internal/services/db/govdb"
	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

var (
	errGovernorNotFound = errors.New("governor not found")
	errProposalNotFound = errors.New("proposal not found")
	errInvalidProposal  = errors.New("invalid proposal id")
	errInvalidState     = errors.New("invalid state")
	errNoHistory        = errors.New("history is not enabled")
)

// Tracked is the driver's view of the proposals it follows
type Tracked interface {
	Snapshots() []dao.ProposalSnapshot
	Get(key string) (dao.ProposalSnapshot, bool)
	Len() int
}

type Membership interface {
	Status(ctx context.Context) (dao.MembershipStatus, error)
}

type History interface {
	History(ctx context.Context, id *big.Int, limit int) ([]govdb.SnapshotRow, error)
}

type Service struct {
	sessions *dao.SessionStore
	tracked  Tracked
	members  Membership
	history  History

	log *zap.Logger
}

// NewService serves the state the engine has resolved. history may be nil.
func NewService(sessions *dao.SessionStore, tracked Tracked, members Membership, history History, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		sessions: sessions,
		tracked:  tracked,
		members:  members,
		history:  history,
		log:      logger,
	}
}

// Routes mounts the handlers under /gov/{contract_address}
func (s *Service) Routes(cr chi.Router) {
	cr.Route("/gov/{contract_address}", func(cr chi.Router) {
		cr.Get("/", s.GetGov)
		cr.Get("/proposals", s.GetGovProposals)
		cr.Get("/proposals/{proposal_id}", s.GetGovProposal)
		cr.Get("/proposals/{proposal_id}/history", s.GetGovProposalHistory)
		cr.Get("/box", s.GetBox)
		cr.Get("/membership", s.GetMembership)
	})
}

// namedGovernor is a Governor that can read its deployed name
type namedGovernor interface {
	Name(ctx context.Context) (string, error)
}

type GovernorInfo struct {
	ChainID    string         `json:"chain_id"`
	Name       string         `json:"name,omitempty"`
	Governor   common.Address `json:"governor"`
	Box        common.Address `json:"box"`
	Account    common.Address `json:"account"`
	ReadOnly   bool           `json:"read_only"`
	StartBlock uint64         `json:"start_block"`
	Tracked    int            `json:"tracked"`
}

// ProposalView is a snapshot as served to clients
type ProposalView struct {
	dao.ProposalSnapshot
	CanVote bool `json:"can_vote"`
}

func newProposalView(snap dao.ProposalSnapshot) ProposalView {
	return ProposalView{ProposalSnapshot: snap, CanVote: snap.CanVote()}
}

type BoxValue struct {
	Address common.Address `json:"address"`
	Value   []string       `json:"value"`
}

// session returns the current session when it serves the governor in the
// url, writing the error response otherwise
func (s *Service) session(w http.ResponseWriter, r *http.Request) (*dao.Session, bool) {
	sess := s.sessions.Load()
	if sess == nil {
		com.Error(w, http.StatusServiceUnavailable, dao.ErrUnsupportedChain)
		return nil, false
	}

	contractAddr := chi.URLParam(r, "contract_address")
	if !com.SameAddress(contractAddr, sess.Governor.Address()) {
		com.Error(w, http.StatusNotFound, errGovernorNotFound)
		return nil, false
	}

	return sess, true
}

// GetGov godoc
//
//	@Summary		Fetch the governor
//	@Description	get the governor the engine follows and its session
//	@Tags			gov
//	@Produce		json
//	@Param			contract_address	path		string	true	"Governor Contract Address"
//	@Success		200					{object}	common.Response
//	@Failure		404
//	@Failure		503
//	@Router			/gov/{contract_address} [get]
func (s *Service) GetGov(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	info := GovernorInfo{
		ChainID:    sess.ChainID.String(),
		Governor:   sess.Governor.Address(),
		Account:    sess.Account,
		ReadOnly:   !sess.HasSigner(),
		StartBlock: sess.StartBlock,
		Tracked:    s.tracked.Len(),
	}
	if sess.Box != nil {
		info.Box = sess.Box.Address()
	}

	if n, ok := sess.Governor.(namedGovernor); ok {
		name, err := n.Name(r.Context())
		if err != nil {
			s.log.Warn("could not read governor name", zap.Error(err))
		}
		info.Name = name
	}

	err := com.Body(w, info, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// GetGovProposals godoc
//
//	@Summary		Fetch proposals
//	@Description	get the tracked proposals, newest first
//	@Tags			gov
//	@Produce		json
//	@Param			contract_address	path		string	true	"Governor Contract Address"
//	@Param			state				query		string	false	"Filter by state name"
//	@Param			limit				query		int		false	"Page size"
//	@Param			offset				query		int		false	"Page offset"
//	@Success		200					{object}	common.Response
//	@Failure		400
//	@Failure		404
//	@Router			/gov/{contract_address}/proposals [get]
func (s *Service) GetGovProposals(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}

	snaps := s.tracked.Snapshots()

	if q := r.URL.Query().Get("state"); q != "" {
		state, err := parseState(q)
		if err != nil {
			com.Error(w, http.StatusBadRequest, err)
			return
		}

		snaps = com.Filter(snaps, func(snap dao.ProposalSnapshot) bool {
			return snap.State == state
		})
	}

	limit, offset := parsePage(r)

	views := []ProposalView{}
	for _, snap := range com.Page(snaps, limit, offset) {
		views = append(views, newProposalView(snap))
	}

	err := com.BodyMultiple(w, views, com.Pagination{Limit: limit, Offset: offset, Total: len(snaps)})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// GetGovProposal godoc
//
//	@Summary		Fetch a proposal
//	@Tags			gov
//	@Produce		json
//	@Param			contract_address	path		string	true	"Governor Contract Address"
//	@Param			proposal_id			path		string	true	"Proposal id, hex or decimal"
//	@Success		200					{object}	common.Response
//	@Failure		400
//	@Failure		404
//	@Router			/gov/{contract_address}/proposals/{proposal_id} [get]
func (s *Service) GetGovProposal(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}

	id, err := parseProposalID(chi.URLParam(r, "proposal_id"))
	if err != nil {
		com.Error(w, http.StatusBadRequest, err)
		return
	}

	snap, ok := s.tracked.Get(dao.ProposalKey(id))
	if !ok {
		com.Error(w, http.StatusNotFound, errProposalNotFound)
		return
	}

	err = com.Body(w, newProposalView(snap), nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// GetGovProposalHistory godoc
//
//	@Summary		Fetch the snapshot history of a proposal
//	@Tags			gov
//	@Produce		json
//	@Param			contract_address	path		string	true	"Governor Contract Address"
//	@Param			proposal_id			path		string	true	"Proposal id, hex or decimal"
//	@Param			limit				query		int		false	"Maximum rows"
//	@Success		200					{object}	common.Response
//	@Failure		400
//	@Failure		404
//	@Failure		500
//	@Router			/gov/{contract_address}/proposals/{proposal_id}/history [get]
func (s *Service) GetGovProposalHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}

	if s.history == nil {
		com.Error(w, http.StatusNotFound, errNoHistory)
		return
	}

	id, err := parseProposalID(chi.URLParam(r, "proposal_id"))
	if err != nil {
		com.Error(w, http.StatusBadRequest, err)
		return
	}

	limit, _ := parsePage(r)

	rows, err := s.history.History(r.Context(), id, limit)
	if err != nil {
		s.log.Error("history", zap.String("proposal", dao.ProposalKey(id)), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	err = com.BodyMultiple(w, rows, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// GetBox godoc
//
//	@Summary		Fetch the Box value
//	@Tags			gov
//	@Produce		json
//	@Param			contract_address	path		string	true	"Governor Contract Address"
//	@Success		200					{object}	common.Response
//	@Failure		404
//	@Failure		502
//	@Router			/gov/{contract_address}/box [get]
func (s *Service) GetBox(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if sess.Box == nil {
		com.Error(w, http.StatusNotFound, dao.ErrArtifactUnavailable)
		return
	}

	value, err := sess.Box.Retrieve(r.Context())
	if err != nil {
		s.log.Error("box retrieve", zap.Error(err))
		com.Error(w, http.StatusBadGateway, dao.ErrRemoteUnavailable)
		return
	}

	err = com.Body(w, BoxValue{Address: sess.Box.Address(), Value: value}, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// GetMembership godoc
//
//	@Summary		Fetch the membership of the session account
//	@Tags			gov
//	@Produce		json
//	@Param			contract_address	path		string	true	"Governor Contract Address"
//	@Success		200					{object}	common.Response
//	@Failure		404
//	@Failure		502
//	@Failure		503
//	@Router			/gov/{contract_address}/membership [get]
func (s *Service) GetMembership(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}

	status, err := s.members.Status(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, dao.ErrExhausted), errors.Is(err, dao.ErrUnsupportedChain):
		com.Error(w, http.StatusServiceUnavailable, err)
		return
	default:
		s.log.Error("membership", zap.Error(err))
		com.Error(w, http.StatusBadGateway, dao.ErrRemoteUnavailable)
		return
	}

	err = com.Body(w, status, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// parseProposalID accepts 0x prefixed hex or decimal ids
func parseProposalID(v string) (*big.Int, error) {
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		id, ok := new(big.Int).SetString(v[2:], 16)
		if !ok {
			return nil, errInvalidProposal
		}
		return id, nil
	}

	id, ok := new(big.Int).SetString(v, 10)
	if !ok || id.Sign() < 0 {
		return nil, errInvalidProposal
	}

	return id, nil
}

func parseState(v string) (dao.ProposalState, error) {
	for s := dao.StatePending; s <= dao.StateExecuted; s++ {
		if strings.EqualFold(s.String(), v) {
			return s, nil
		}
	}

	return 0, errInvalidState
}

func parsePage(r *http.Request) (limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err = strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return limit, offset
}
