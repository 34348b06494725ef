package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	cl "clicker/internal/cli"
	"clicker/internal/config"
	"clicker/internal/game"
	"clicker/internal/save"
	"clicker/internal/session"
	"clicker/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	opts := &options{apiBase: cfg.APIBaseURL, saveDir: cfg.SaveDir}

	root := &cobra.Command{
		Use:          "clk",
		Short:        "Idle clicker game",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.saveDir, "save-dir", opts.saveDir, "directory holding local saves")
	root.PersistentFlags().StringVar(&opts.gameID, "game", "", "save id to play instead of the current one")

	root.AddCommand(
		newNewCmd(opts),
		newShowCmd(opts),
		newUpgradesCmd(opts),
		newBuyCmd(opts),
		newIdleCmd(opts),
		newSettingsCmd(opts),
		newListCmd(opts),
		newUseCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newRemoteCmd(opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	apiBase string
	saveDir string
	gameID  string
}

type local struct {
	store    *save.FileStore
	sessions *session.Service
}

func openLocal(opts *options) (*local, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	engine := game.NewEngine(game.DefaultRegistry(), logger)
	store, err := save.NewFileStore(opts.saveDir, engine)
	if err != nil {
		return nil, err
	}
	return &local{
		store:    store,
		sessions: session.NewService(store, engine, session.RealClock{}, logger),
	}, nil
}

// resolve picks the --game save or the current one, then credits the time
// spent away since it was last written.
func (l *local) resolve(ctx context.Context, opts *options) (uuid.UUID, error) {
	var id uuid.UUID
	if strings.TrimSpace(opts.gameID) != "" {
		parsed, err := uuid.Parse(strings.TrimSpace(opts.gameID))
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid --game: %w", err)
		}
		id = parsed
	} else {
		cur, err := l.store.Current()
		if err != nil {
			return uuid.Nil, err
		}
		id = cur
	}
	res, err := l.sessions.Settle(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if res.Ticks > 0 {
		printInfo(fmt.Sprintf("While away: +%s %s over %d ticks.", formatAmount(res.Earned), res.Currency, res.Ticks))
	}
	return id, nil
}

func newNewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new local game and make it current",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			id, d, err := l.sessions.NewGame(cmd.Context())
			if err != nil {
				return err
			}
			if err := l.store.SetCurrent(id); err != nil {
				return err
			}
			printSuccess("New game started.")
			renderState(id, d)
			return nil
		},
	}
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show balances, multiplier and settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := l.resolve(ctx, opts)
			if err != nil {
				return err
			}
			d, err := l.sessions.State(ctx, id)
			if err != nil {
				return err
			}
			renderState(id, d)
			return l.sessions.Save(ctx, id)
		},
	}
}

func newUpgradesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrades",
		Short: "List upgrades with their current cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := l.resolve(ctx, opts)
			if err != nil {
				return err
			}
			views, err := l.sessions.Upgrades(ctx, id)
			if err != nil {
				return err
			}
			renderUpgrades(views)
			return l.sessions.Save(ctx, id)
		},
	}
}

func newBuyCmd(opts *options) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "buy <upgrade>",
		Short: "Buy an upgrade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("count must be > 0")
			}
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := l.resolve(ctx, opts)
			if err != nil {
				return err
			}
			name := game.UpgradeName(strings.ToLower(strings.TrimSpace(args[0])))
			bought := 0
			for i := 0; i < count; i++ {
				receipt, err := l.sessions.Purchase(ctx, id, name)
				if err != nil {
					if bought > 0 && errors.Is(err, game.ErrInsufficientFunds) {
						printWarn(fmt.Sprintf("Stopped after %d purchases: %v", bought, err))
						break
					}
					if saveErr := l.sessions.Save(ctx, id); saveErr != nil {
						return saveErr
					}
					return err
				}
				renderReceipt(receipt)
				bought++
			}
			return l.sessions.Save(ctx, id)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "how many times to buy")
	return cmd
}

func newIdleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "idle <duration>",
		Short: "Advance the game by a duration such as 90s or 2h",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			elapsed, err := time.ParseDuration(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if elapsed < 0 {
				return fmt.Errorf("duration must be >= 0")
			}
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := l.resolve(ctx, opts)
			if err != nil {
				return err
			}
			res, err := l.sessions.Tick(ctx, id, elapsed)
			if err != nil {
				return err
			}
			renderTick(res)
			return l.sessions.Save(ctx, id)
		},
	}
}

func newSettingsCmd(opts *options) *cobra.Command {
	var autosave, offline string
	var autosaveEvery time.Duration
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Change autosave and offline progress settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch session.SettingsPatch
			if cmd.Flags().Changed("autosave") {
				v, err := parseOnOff(autosave)
				if err != nil {
					return err
				}
				patch.Autosave = &v
			}
			if cmd.Flags().Changed("offline") {
				v, err := parseOnOff(offline)
				if err != nil {
					return err
				}
				patch.OfflineProgress = &v
			}
			if cmd.Flags().Changed("autosave-every") {
				ms := autosaveEvery.Milliseconds()
				patch.AutosaveMillis = &ms
			}
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := l.resolve(ctx, opts)
			if err != nil {
				return err
			}
			st, err := l.sessions.UpdateSettings(ctx, id, patch)
			if err != nil {
				return err
			}
			if err := l.sessions.Save(ctx, id); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Settings: autosave=%s every %s, offline=%s",
				onOff(st.Autosave), st.AutosaveEvery(), onOff(st.OfflineProgress)))
			return nil
		},
	}
	cmd.Flags().StringVar(&autosave, "autosave", "", "on or off")
	cmd.Flags().StringVar(&offline, "offline", "", "credit time spent away: on or off")
	cmd.Flags().DurationVar(&autosaveEvery, "autosave-every", 0, "autosave interval, at least 1s")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local saves",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			metas, err := l.sessions.List(cmd.Context())
			if err != nil {
				return err
			}
			current, _ := l.store.Current()
			renderSaves(metas, current)
			return nil
		},
	}
}

func newUseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "use <save-id>",
		Short: "Make a local save current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			if _, err := l.sessions.State(cmd.Context(), id); err != nil {
				return err
			}
			if err := l.store.SetCurrent(id); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Now playing %s.", id))
			return nil
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the current save as JSON to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := l.resolve(ctx, opts)
			if err != nil {
				return err
			}
			d, err := l.sessions.State(ctx, id)
			if err != nil {
				return err
			}
			raw, err := game.Encode(d)
			if err != nil {
				return err
			}
			if err := l.sessions.Save(ctx, id); err != nil {
				return err
			}
			if len(args) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			}
			if err := os.WriteFile(args[0], raw, 0o600); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Exported %s to %s.", id, args[0]))
			return nil
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a save file of any supported version and make it current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			l, err := openLocal(opts)
			if err != nil {
				return err
			}
			id, d, err := l.sessions.Import(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if err := l.store.SetCurrent(id); err != nil {
				return err
			}
			printSuccess("Save imported.")
			renderState(id, d)
			return nil
		},
	}
}

func newRemoteCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Play a game hosted by the clicker API",
	}
	cmd.PersistentFlags().StringVar(&opts.apiBase, "api", opts.apiBase, "clicker API base URL")
	cmd.AddCommand(
		newRemoteNewCmd(opts),
		newRemoteShowCmd(opts),
		newRemoteUpgradesCmd(opts),
		newRemoteBuyCmd(opts),
		newRemoteTickCmd(opts),
		newRemoteSyncCmd(opts),
		newRemoteForgetCmd(),
	)
	return cmd
}

func newClient(opts *options) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(opts.apiBase), "/"))
}

// remoteGame returns the client and game id for remote commands. A --game
// flag wins over the remembered game.
func remoteGame(cmd *cobra.Command, opts *options) (*cl.Client, uuid.UUID, error) {
	if strings.TrimSpace(opts.gameID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(opts.gameID))
		if err != nil {
			return nil, uuid.Nil, fmt.Errorf("invalid --game: %w", err)
		}
		return newClient(opts), id, nil
	}
	r, err := cl.LoadRemote()
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("remote game required: %w", err)
	}
	if r.BaseURL != "" && !cmd.Flags().Changed("api") {
		opts.apiBase = r.BaseURL
	}
	return newClient(opts), r.GameID, nil
}

func newRemoteNewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create a game on the server and remember it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(opts)
			created, err := client.CreateGame(ctx)
			if err != nil {
				return err
			}
			if err := cl.SaveRemote(cl.Remote{BaseURL: client.BaseURL, GameID: created.ID}); err != nil {
				return err
			}
			printSuccess("Remote game created.")
			renderState(created.ID, &created.State)
			return nil
		},
	}
}

func newRemoteShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Settle and show the remote game",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, id, err := remoteGame(cmd, opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := client.Settle(ctx, id); err != nil {
				return err
			}
			d, err := client.Game(ctx, id)
			if err != nil {
				return err
			}
			renderState(id, &d)
			return nil
		},
	}
}

func newRemoteUpgradesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrades",
		Short: "List remote upgrades",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, id, err := remoteGame(cmd, opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			views, err := client.Upgrades(ctx, id)
			if err != nil {
				return err
			}
			renderUpgrades(views)
			return nil
		},
	}
}

func openQueue() (*syncq.Queue, error) {
	path, err := syncq.DefaultPath()
	if err != nil {
		return nil, err
	}
	return syncq.Open(path)
}

// isOffline reports transport failures; API errors mean the server answered.
func isOffline(err error) bool {
	var apiErr *cl.APIError
	return err != nil && !errors.As(err, &apiErr)
}

func newRemoteBuyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <upgrade>",
		Short: "Buy an upgrade on the server, queueing it when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, id, err := remoteGame(cmd, opts)
			if err != nil {
				return err
			}
			name := strings.ToLower(strings.TrimSpace(args[0]))
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			receipt, err := client.Purchase(ctx, id, name)
			if isOffline(err) {
				q, qerr := openQueue()
				if qerr != nil {
					return qerr
				}
				if qerr := q.Push(syncq.Purchase{BaseURL: client.BaseURL, GameID: id, Upgrade: name}); qerr != nil {
					return qerr
				}
				printWarn("API unreachable. Purchase queued, run `clk remote sync` later.")
				return nil
			}
			if err != nil {
				return err
			}
			renderReceipt(receipt)
			return nil
		},
	}
}

func newRemoteTickCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tick <duration>",
		Short: "Advance the remote game by a duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			elapsed, err := time.ParseDuration(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			client, id, err := remoteGame(cmd, opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := client.Tick(ctx, id, elapsed)
			if err != nil {
				return err
			}
			renderTick(res)
			return nil
		},
	}
}

// clientPool hands out one client per API host recorded in the queue. With
// pinned set, every purchase goes to the fallback host.
type clientPool struct {
	fallback *cl.Client
	pinned   bool
	byBase   map[string]*cl.Client
}

func newClientPool(fallback *cl.Client, pinned bool) *clientPool {
	return &clientPool{
		fallback: fallback,
		pinned:   pinned,
		byBase:   map[string]*cl.Client{fallback.BaseURL: fallback},
	}
}

func (p *clientPool) forPurchase(q syncq.Purchase) *cl.Client {
	base := strings.TrimRight(strings.TrimSpace(q.BaseURL), "/")
	if p.pinned || base == "" {
		return p.fallback
	}
	if c, ok := p.byBase[base]; ok {
		return c
	}
	c := cl.NewClient(base)
	p.byBase[base] = c
	return c
}

func newRemoteSyncCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay purchases queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue()
			if err != nil {
				return err
			}
			clients := newClientPool(newClient(opts), cmd.Flags().Changed("api"))
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			replayed, remaining, err := q.Replay(func(p syncq.Purchase) error {
				_, err := clients.forPurchase(p).Purchase(ctx, p.GameID, p.Upgrade)
				if err != nil {
					printError(fmt.Sprintf("Sync failed for %s on %s: %v", p.Upgrade, p.GameID, err))
				}
				return err
			}, func(err error) bool {
				var apiErr *cl.APIError
				return errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
			})
			if err != nil {
				return err
			}
			if replayed == 0 && len(remaining) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", replayed, len(remaining)))
			return nil
		},
	}
}

func newRemoteForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Forget the remembered remote game",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearRemote(); err != nil {
				return err
			}
			printSuccess("Remote game forgotten.")
			return nil
		},
	}
}
