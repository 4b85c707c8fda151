package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"text/tabwriter"

	com "github.com/citizenwallet/boxdao/internal/common"
	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/governor"
	"github.com/citizenwallet/boxdao/pkg/govindex"
	"github.com/citizenwallet/boxdao/pkg/membership"
	"github.com/citizenwallet/boxdao/pkg/resolve"
	"github.com/citizenwallet/boxdao/pkg/submit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNotActive = errors.New("proposal is not accepting votes")

func proposalsCommand() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "List the Governor's proposals, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, cur.conf, cur.logger)
			if err != nil {
				return err
			}
			defer sess.EVM.Close()

			head, err := sess.EVM.LatestBlock(ctx)
			if err != nil {
				return fmt.Errorf("%w: latest block: %v", dao.ErrRemoteUnavailable, err)
			}

			records, err := govindex.New(cur.conf.LogRate, cur.logger).Discover(ctx, sess, sess.StartBlock, head.Uint64())
			if err != nil {
				return err
			}

			snaps := resolve.New(cur.logger).ResolveAll(ctx, sess, records)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tFOR\tAGAINST\tABSTAIN\tDEADLINE\tDESCRIPTION")
			for i := len(snaps) - 1; i >= 0; i-- {
				s := snaps[i]

				id := s.Record.Key()
				if !full {
					id = com.ShortHex(id, 6)
				}

				deadline := "ended"
				if !s.VotingEnded() {
					deadline = fmt.Sprintf("%d blocks", s.VotingDeadline)
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					id, s.State, s.Votes.For, s.Votes.Against, s.Votes.Abstain, deadline, s.Record.Description)
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "print full proposal ids")

	return cmd
}

func proposeCommand() *cobra.Command {
	var (
		values      []string
		description string
	)

	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Propose storing a new value in the Box",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, cur.conf, cur.logger)
			if err != nil {
				return err
			}
			defer sess.EVM.Close()

			payload, err := governor.StorePayload(sess.Box, values, description)
			if err != nil {
				return err
			}

			id, err := governor.HashPayload(payload)
			if err != nil {
				return err
			}

			s := submit.New(cur.conf.Confirmations(), cur.conf.ConfirmationTimeout, cur.logger)

			receipt, err := s.SubmitAndWait(ctx, sess, dao.ActionPropose, submit.Request{Payload: payload})
			if err != nil {
				return err
			}

			state, err := sess.Governor.State(ctx, id)
			if err != nil {
				cur.logger.Warn("proposal state", zap.String("proposal", dao.ProposalKey(id)), zap.Error(err))
			}

			fmt.Printf("proposed %s in block %s (%s)\n", dao.ProposalKey(id), receipt.BlockNumber, dao.ProposalState(state))

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&values, "value", nil, "value to store, comma separated")
	cmd.Flags().StringVar(&description, "description", "", "proposal description")
	cmd.MarkFlagRequired("value")
	cmd.MarkFlagRequired("description")

	return cmd
}

func voteCommand() *cobra.Command {
	var (
		support string
		reason  string
	)

	cmd := &cobra.Command{
		Use:   "vote <proposal id>",
		Short: "Vote on an active proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}

			sup, ok := dao.VoteSupportFromString(strings.ToLower(support))
			if !ok {
				return fmt.Errorf("invalid support %q, use for, against or abstain", support)
			}

			sess, err := newSession(ctx, cur.conf, cur.logger)
			if err != nil {
				return err
			}
			defer sess.EVM.Close()

			raw, err := sess.Governor.State(ctx, id)
			if err != nil {
				return fmt.Errorf("%w: state: %v", dao.ErrRemoteUnavailable, err)
			}

			state, err := dao.ProposalStateFromUint8(raw)
			if err != nil {
				return err
			}
			if state != dao.StateActive {
				return fmt.Errorf("%w: %s", errNotActive, state)
			}

			s := submit.New(cur.conf.Confirmations(), cur.conf.ConfirmationTimeout, cur.logger)

			receipt, err := s.SubmitAndWait(ctx, sess, dao.ActionVote, submit.Request{ProposalID: id, Support: sup, Reason: reason})
			if err != nil {
				return err
			}

			votes, err := sess.Governor.ProposalVotes(ctx, id)
			if err != nil {
				return fmt.Errorf("%w: votes: %v", dao.ErrRemoteUnavailable, err)
			}

			fmt.Printf("voted %s on %s in block %s: for %s, against %s, abstain %s\n",
				sup, dao.ProposalKey(id), receipt.BlockNumber, votes.For, votes.Against, votes.Abstain)

			return nil
		},
	}

	cmd.Flags().StringVar(&support, "support", "for", "for, against or abstain")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the vote")

	return cmd
}

func membersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "Show whether the configured account holds voting weight",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, cur.conf, cur.logger)
			if err != nil {
				return err
			}
			defer sess.EVM.Close()

			if !sess.HasSigner() {
				return dao.ErrNoSigner
			}

			gate := membership.NewGate(membership.NewProber(cur.conf.MembershipMaxProbes, cur.logger), dao.NewSessionStore(sess))

			status, err := gate.Status(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("account %s member %t weight %s at block %d\n",
				status.Account.Hex(), status.IsMember, status.Weight, status.AsOfBlock)

			return nil
		},
	}
}

func boxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "box",
		Short: "Read the Box",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "value",
		Short: "Print the value stored in the Box",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, cur.conf, cur.logger)
			if err != nil {
				return err
			}
			defer sess.EVM.Close()

			value, err := sess.Box.Retrieve(ctx)
			if err != nil {
				return fmt.Errorf("%w: retrieve: %v", dao.ErrRemoteUnavailable, err)
			}

			fmt.Println(strings.Join(value, ","))

			return nil
		},
	})

	return cmd
}

// parseProposalID accepts 0x prefixed hex or decimal ids
func parseProposalID(v string) (*big.Int, error) {
	base := 10
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		base, v = 16, v[2:]
	}

	id, ok := new(big.Int).SetString(v, base)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid proposal id %q", v)
	}

	return id, nil
}
