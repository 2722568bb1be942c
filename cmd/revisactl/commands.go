package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/revisahub/internal/domain"
	"github.com/ashureev/revisahub/internal/progress"
	"github.com/ashureev/revisahub/internal/streak"
	"github.com/ashureev/revisahub/internal/tutor"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt <profile-id>",
		Short: "Print the compiled system prompt of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")

			repo, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			p, err := repo.GetProfile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get profile: %w", err)
			}
			if p == nil {
				return fmt.Errorf("profile %s: %w", args[0], domain.ErrProfileNotFound)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tutor.CompileFor(p, subject))
			return err
		},
	}
	cmd.Flags().String("subject", "", "Subject whose hints are included")
	return cmd
}

func newStreakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streak <profile-id>",
		Short: "Print the streak snapshot of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			snap, err := streak.NewTracker(repo).Snapshot(cmd.Context(), args[0])
			if err != nil {
				return notFound(args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <profile-id>",
		Short: "Print the aggregated progress of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			stats, err := progress.NewAggregator(repo, streak.NewTracker(repo)).Progress(cmd.Context(), args[0])
			if err != nil {
				return notFound(args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func notFound(id string, err error) error {
	if errors.Is(err, domain.ErrProfileNotFound) {
		return fmt.Errorf("profile %s: %w", id, err)
	}
	return err
}
