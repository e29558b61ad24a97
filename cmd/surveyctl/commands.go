package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

type completionsResult struct {
	UserID      string   `json:"user_id"`
	Completions []string `json:"completions"`
}

type actionResult struct {
	UserID  string   `json:"user_id"`
	Action  string   `json:"action"`
	Targets []string `json:"targets,omitempty"`
}

func newCompletionsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completions",
		Short: "List or clear a respondent's completed surveys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <user-id>",
		Short: "List completed surveys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ids := e.store.ListCompleted(cmd.Context(), survey.UserID(args[0]))
			return e.print(completionsResult{UserID: args[0], Completions: ids}, func(w io.Writer) {
				if len(ids) == 0 {
					fmt.Fprintf(w, "user %s has no completed surveys\n", args[0])
					return
				}
				for _, id := range ids {
					fmt.Fprintln(w, id)
				}
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <user-id>",
		Short: "Forget every completion of a respondent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			e.store.ClearAll(cmd.Context(), survey.UserID(args[0]))
			return e.print(actionResult{UserID: args[0], Action: "clear"}, func(w io.Writer) {
				fmt.Fprintf(w, "cleared completions for user %s\n", args[0])
			})
		},
	})

	return cmd
}

func newUnmarkCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unmark <user-id> <survey-id>...",
		Short: "Return surveys to available for a respondent",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			userID := survey.UserID(args[0])
			for _, surveyID := range args[1:] {
				e.coordinator.Reset(cmd.Context(), userID, surveyID)
			}
			return e.print(actionResult{UserID: args[0], Action: "unmark", Targets: args[1:]}, func(w io.Writer) {
				for _, surveyID := range args[1:] {
					fmt.Fprintf(w, "%s: %s\n", surveyID, e.coordinator.State(cmd.Context(), userID, surveyID))
				}
			})
		},
	}
}

func newUnmarkGroupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unmark-group <user-id> <group-id>",
		Short: "Return every survey of an equivalence group to available",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			members := e.registry.MembersOf(args[1])
			if len(members) == 0 {
				return fmt.Errorf("unknown group %q", args[1])
			}
			e.coordinator.ResetGroup(cmd.Context(), survey.UserID(args[0]), args[1])
			return e.print(actionResult{UserID: args[0], Action: "unmark-group", Targets: members}, func(w io.Writer) {
				fmt.Fprintf(w, "group %s reset for user %s (%d surveys)\n", args[1], args[0], len(members))
			})
		},
	}
}

func newGroupsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "Show the configured equivalence groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			groups := e.registry.Groups()
			return e.print(groups, func(w io.Writer) {
				if len(groups) == 0 {
					fmt.Fprintln(w, "no equivalence groups configured")
					return
				}
				for _, g := range groups {
					fmt.Fprintf(w, "%s\t%v\n", g.ID, g.Members)
				}
			})
		},
	}
}
