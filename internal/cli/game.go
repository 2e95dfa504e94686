package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameRecordCmd())
	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGameListCmd())

	return cmd
}

func newGameRecordCmd() *cobra.Command {
	var playedAt string

	cmd := &cobra.Command{
		Use:   "record <collection> <name=score>...",
		Short: "Record a finished game",
		Long: `Record a finished game in a collection.

Each player is given as name=score, for example:

  skctl game record table_games Alice=21 Bob=15`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := args[0]

			players := make([]map[string]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				name, scoreStr, ok := strings.Cut(arg, "=")
				if !ok || name == "" {
					return fmt.Errorf("player %q must be name=score", arg)
				}
				score, err := strconv.Atoi(scoreStr)
				if err != nil {
					return fmt.Errorf("player %q has a non-numeric score", arg)
				}
				players = append(players, map[string]any{"name": name, "score": score})
			}

			req := map[string]any{"players": players}
			if playedAt != "" {
				req["played_at"] = playedAt
			}

			var result Game
			if err := client.Post(fmt.Sprintf("/api/v1/collections/%s/games", collection), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&playedAt, "played-at", "", "When the game was played (RFC 3339, defaults to now)")

	return cmd
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Get a recorded game",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game

			if err := client.Get(fmt.Sprintf("/api/v1/collections/%s/games/%s", args[0], args[1]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection> <identity-id>",
		Short: "List an identity's games in a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result GameList

			if err := client.Get(fmt.Sprintf("/api/v1/collections/%s/games?identity_id=%s", args[0], args[1]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
