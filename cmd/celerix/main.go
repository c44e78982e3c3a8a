package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-web/internal/blog"
	"github.com/celerix-dev/celerix-web/pkg/engine"
	"github.com/celerix-dev/celerix-web/pkg/entity"
	"github.com/celerix-dev/celerix-web/pkg/sdk"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	addr     string
	insecure bool
}

func (o *options) connect() (*sdk.Client, error) {
	client, err := sdk.Dial(o.addr, !o.insecure)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", o.addr, err)
	}
	return client, nil
}

// withClient runs fn against a fresh connection and closes it afterwards.
func (o *options) withClient(fn func(*sdk.Client) error) error {
	client, err := o.connect()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "celerix",
		Short:        "Command line client for the Celerix table store",
		SilenceUsage: true,
	}

	addr := os.Getenv("CELERIX_STORE_ADDR")
	if addr == "" {
		addr = "localhost:7001"
	}
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", addr, "store address (CELERIX_STORE_ADDR)")
	cmd.PersistentFlags().BoolVar(&opts.insecure, "insecure", os.Getenv("CELERIX_DISABLE_TLS") == "true", "use plain TCP (CELERIX_DISABLE_TLS)")

	cmd.AddCommand(
		postsCmd(opts),
		tablesCmd(opts),
		dumpCmd(opts),
		pingCmd(opts),
		migrateCmd(opts),
	)
	return cmd
}

func postsCmd(opts *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "posts",
		Short: "Manage blog posts",
	}

	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withClient(func(client *sdk.Client) error {
				posts, err := sdk.All(client, blog.Posts)
				if err != nil {
					return err
				}
				views := make([]*entity.Map, 0, len(posts))
				for _, p := range posts {
					views = append(views, blog.Posts.ToTransport(p))
				}
				return printJSON(cmd.OutOrStdout(), views)
			})
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withClient(func(client *sdk.Client) error {
				p, err := sdk.Find(client, blog.Posts, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), blog.Posts.ToTransport(p))
			})
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "create <json>",
		Short: "Create a post from a JSON object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseData(args[0])
			if err != nil {
				return err
			}
			delete(data, entity.FieldID)
			p, err := blog.NewPost(data)
			if err != nil {
				return err
			}
			return opts.withClient(func(client *sdk.Client) error {
				saved, err := sdk.Save(client, blog.Posts, p)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), blog.Posts.ToTransport(saved))
			})
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "update <id> <json>",
		Short: "Change fields of a post",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			data, err := parseData(args[1])
			if err != nil {
				return err
			}
			return opts.withClient(func(client *sdk.Client) error {
				p, err := sdk.Find(client, blog.Posts, id)
				if err != nil {
					return err
				}
				if _, err := p.Set(data); err != nil {
					return err
				}
				saved, err := sdk.Save(client, blog.Posts, p)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), blog.Posts.ToTransport(saved))
			})
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withClient(func(client *sdk.Client) error {
				if err := sdk.Remove(client, blog.Posts, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			})
		},
	})

	return c
}

func tablesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the store tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withClient(func(client *sdk.Client) error {
				tables, err := client.Tables()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tables)
			})
		},
	}
}

func dumpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <table>",
		Short: "Print every row of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(func(client *sdk.Client) error {
				rows, err := client.DumpTable(args[0])
				if err != nil {
					return err
				}
				byID := make(map[string]map[string]any, len(rows))
				for id, row := range rows {
					byID[strconv.FormatInt(id, 10)] = row
				}
				return printJSON(cmd.OutOrStdout(), byID)
			})
		},
	}
}

func pingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the store answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withClient(func(client *sdk.Client) error {
				if err := client.Ping(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "PONG")
				return nil
			})
		},
	}
}

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <data-dir>",
		Short: "Copy the tables of a local data directory to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := engine.NewPersistence(args[0])
			if err != nil {
				return err
			}
			data, err := p.LoadAll()
			if err != nil {
				return err
			}
			src := engine.NewMemStore(data, nil)

			return opts.withClient(func(client *sdk.Client) error {
				if err := engine.Migrate(src, client); err != nil {
					return err
				}
				tables, _ := src.Tables()
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(tables))
				return nil
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseData(s string) (entity.Data, error) {
	var data entity.Data
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("invalid JSON object: %s", s)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
