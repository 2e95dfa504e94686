package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "identity",
		Short:   "Identity commands",
		Aliases: []string{"id"},
	}

	cmd.AddCommand(newIdentityResolveCmd())
	cmd.AddCommand(newIdentityGetCmd())
	cmd.AddCommand(newIdentitySearchCmd())
	cmd.AddCommand(newIdentityRenameCmd())
	cmd.AddCommand(newIdentityAliasCmd())
	cmd.AddCommand(newIdentityMergeCmd())
	cmd.AddCommand(newIdentitySplitCmd())
	cmd.AddCommand(newIdentityLinkCmd())
	cmd.AddCommand(newIdentityUnlinkCmd())
	cmd.AddCommand(newIdentityDeleteCmd())
	cmd.AddCommand(newIdentityRestoreCmd())
	cmd.AddCommand(newIdentityRecomputeStatsCmd())

	return cmd
}

func newIdentityResolveCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a display name to its canonical identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"name": args[0]}
			if kind != "" {
				req["kind"] = kind
			}

			var result Identity
			if err := client.Post("/api/v1/identities/resolve", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Kind for a newly-created identity (guest, user)")

	return cmd
}

func newIdentityGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get an identity by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Identity

			if err := client.Get(fmt.Sprintf("/api/v1/identities/%s", args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newIdentitySearchCmd() *cobra.Command {
	var (
		kind           string
		claimed        string
		includeDeleted bool
		offset         int
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search identities by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if len(args) > 0 {
				params.Set("q", args[0])
			}
			if kind != "" {
				params.Set("kind", kind)
			}
			if claimed != "" {
				params.Set("claimed", claimed)
			}
			if includeDeleted {
				params.Set("include_deleted", "true")
			}
			if offset > 0 {
				params.Set("offset", strconv.Itoa(offset))
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}

			path := "/api/v1/identities"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var result SearchResult
			if err := client.Get(path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (guest, user, imported)")
	cmd.Flags().StringVar(&claimed, "claimed", "", "Filter by claim state (true, false)")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include soft-deleted identities")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	cmd.Flags().IntVar(&limit, "limit", 0, "Result limit")

	return cmd
}

func newIdentityRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <new-name>",
		Short: "Rename an identity, keeping the old name in its history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"new_name": args[1]}

			var result Identity
			if err := client.Post(fmt.Sprintf("/api/v1/identities/%s/rename", args[0]), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newIdentityAliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Alias commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <id> <alias>",
		Short: "Add an alias to an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"alias": args[1]}

			var result Identity
			if err := client.Post(fmt.Sprintf("/api/v1/identities/%s/aliases", args[0]), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id> <alias>",
		Short: "Remove an alias from an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(fmt.Sprintf("/api/v1/identities/%s/aliases/%s", args[0], url.PathEscape(args[1]))); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Alias removed")
			return nil
		},
	})

	return cmd
}

func newIdentityMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <target-id> <source-id>...",
		Short: "Merge source identities into the target",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"source_ids": args[1:]}

			var result MergeResult
			if err := client.Post(fmt.Sprintf("/api/v1/identities/%s/merge", args[0]), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newIdentitySplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <id> <alias>",
		Short: "Split an alias out into a fresh guest identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"alias": args[1]}

			var result SplitResult
			if err := client.Post(fmt.Sprintf("/api/v1/identities/%s/split", args[0]), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newIdentityLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <guest-id> <user-id>",
		Short: "Link a guest identity to a registered user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"user_id": args[1]}

			var result LinkResult
			if err := client.Post(fmt.Sprintf("/api/v1/identities/%s/link", args[0]), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newIdentityUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <guest-id> <user-id>",
		Short: "Undo a guest-to-user link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"user_id": args[1]}

			var result LinkResult
			if err := client.Post(fmt.Sprintf("/api/v1/identities/%s/unlink", args[0]), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newIdentityDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(fmt.Sprintf("/api/v1/identities/%s", args[0])); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Identity deleted")
			return nil
		},
	}
}

func newIdentityRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a soft-deleted identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Identity

			if err := client.Post(fmt.Sprintf("/api/v1/identities/%s/restore", args[0]), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newIdentityRecomputeStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-stats <id>",
		Short: "Recompute cached stats from game records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Identity

			if err := client.Post(fmt.Sprintf("/api/v1/identities/%s/stats/recompute", args[0]), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
