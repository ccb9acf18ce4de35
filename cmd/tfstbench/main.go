// Command tfstbench is the CLI of the sentence automaton workbench.
// It shows and edits the sentences of a text automaton, runs the external
// tools over it, and archives coverage runs and tag frequencies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/tfstbench/core/cas"
	"github.com/FocuswithJustin/tfstbench/core/persist"
	"github.com/FocuswithJustin/tfstbench/core/runner"
	"github.com/FocuswithJustin/tfstbench/core/session"
	"github.com/FocuswithJustin/tfstbench/core/store"
	"github.com/FocuswithJustin/tfstbench/internal/config"
	"github.com/FocuswithJustin/tfstbench/internal/server"
)

const version = "0.4.0"

// CLI defines the command-line interface for tfstbench.
var CLI struct {
	// Global flags override the TFST_ environment.
	EnvFile   string `name:"env-file" help:"Read settings from this .env file" type:"path"`
	SntDir    string `name:"snt-dir" short:"d" help:"Directory holding text.tfst" type:"path"`
	ElagDir   string `name:"elag-dir" help:"Directory holding tagset.def and elag.rul" type:"path"`
	Tool      string `name:"tool" help:"Path to the UnitexToolLogger binary"`
	DB        string `name:"db" help:"SQLite database for coverage runs and tag counts" type:"path"`
	LogLevel  string `name:"log-level" help:"debug, info, warn or error"`
	LogFormat string `name:"log-format" help:"json or text"`

	Check     CheckCmd     `cmd:"" help:"Check the graph of a sentence"`
	Table     TableCmd     `cmd:"" help:"Print the interpretation table of a sentence"`
	Export    ExportCmd    `cmd:"" help:"Export the POS list of a sentence"`
	Coverage  CoverageCmd  `cmd:"" help:"Compute, archive or show box coverage"`
	Convert   ConvertCmd   `cmd:"" help:"Re-encode a graph file"`
	Sentence  SentenceCmd  `cmd:"" help:"Sentence operations (show, revert, next)"`
	SaveAll   SaveAllCmd   `cmd:"" name:"save-all" help:"Rebuild text.tfst from the edited sentences"`
	Elag      ElagCmd      `cmd:"" help:"Elag disambiguation (apply, replace)"`
	Explode   ExplodeCmd   `cmd:"" help:"Explode the tags of the text automaton"`
	Implode   ImplodeCmd   `cmd:"" help:"Implode the tags of the text automaton"`
	Normalize NormalizeCmd `cmd:"" help:"Normalize the text automaton against the tagset"`
	Tags      TagsCmd      `cmd:"" help:"Tag frequency index (import, top)"`
	Bundle    BundleCmd    `cmd:"" help:"Pack or unpack the work files of a sentence directory"`
	Serve     ServeCmd     `cmd:"" help:"Serve the table and change notifications over HTTP"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// loadConfig reads the environment and applies the global flags.
func loadConfig() (*config.Config, error) {
	var files []string
	if CLI.EnvFile != "" {
		files = append(files, CLI.EnvFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.SntDir, CLI.SntDir)
	override(&cfg.ElagDir, CLI.ElagDir)
	override(&cfg.UnitexTool, CLI.Tool)
	override(&cfg.DBPath, CLI.DB)
	override(&cfg.LogLevel, CLI.LogLevel)
	override(&cfg.LogFormat, CLI.LogFormat)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.InitLogging()
	return cfg, nil
}

// newRunner builds the tool launcher. Tests replace it.
var newRunner = func(cfg *config.Config) (persist.Runner, error) {
	l := runner.NewLauncher(cfg.UnitexTool, cfg.SntDir)
	if cfg.TranscriptPath != "" {
		w, err := runner.NewTranscriptWriter(cfg.TranscriptPath)
		if err != nil {
			return nil, err
		}
		l.Transcript = w
	}
	return l, nil
}

// openSession opens the text automaton of the configuration.
func openSession() (*session.Session, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireSession(); err != nil {
		return nil, nil, err
	}
	r, err := newRunner(cfg)
	if err != nil {
		return nil, nil, err
	}
	sess, err := session.Open(cfg.SessionOptions(), r)
	if err != nil {
		return nil, nil, err
	}
	snapshots, err := cas.NewStore(cfg.SnapshotDir)
	if err != nil {
		return nil, nil, err
	}
	sess.Persist().SetSnapshots(snapshots)
	return sess, cfg, nil
}

// openAt opens the session and loads sentence n.
func openAt(ctx context.Context, n int) (*session.Session, error) {
	sess, _, err := openSession()
	if err != nil {
		return nil, err
	}
	if _, err := sess.LoadSentence(ctx, n); err != nil {
		return nil, err
	}
	return sess, nil
}

// openStore opens the SQLite archive of the configuration.
func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.DBPath)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "tfstbench version %s\n", version)
	return nil
}

// ServeCmd serves the session over HTTP until interrupted.
type ServeCmd struct {
	Addr     string   `help:"Listen address (default from TFST_LISTEN_ADDR)"`
	Sentence int      `short:"s" default:"1" help:"Sentence to load first"`
	Origins  []string `name:"origin" help:"Allowed CORS origins (all when empty)"`
}

func (c *ServeCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, cfg, err := openSession()
	if err != nil {
		return err
	}
	if _, err := sess.LoadSentence(ctx, c.Sentence); err != nil {
		return err
	}
	addr := c.Addr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	server.Version = version
	srv := server.New(sess, server.CORSConfig{AllowedOrigins: c.Origins})
	return srv.ListenAndServe(ctx, addr)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("tfstbench"),
		kong.Description("Sentence automaton workbench"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
