// Package cli implements civicid's command-line subcommands.
package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/artifact"
	"github.com/zarlcorp/civicid/internal/batch"
	"github.com/zarlcorp/civicid/internal/ledger"
	"github.com/zarlcorp/civicid/internal/metadata"
	"github.com/zarlcorp/civicid/internal/metrics"
	"github.com/zarlcorp/civicid/internal/server"
	"github.com/zarlcorp/core/pkg/zcrypto"
	"github.com/zarlcorp/core/pkg/zfilesystem"
	"golang.org/x/term"
)

// ExampleAddresses are generated by the examples command.
var ExampleAddresses = []string{
	"0x8626f6940E2eb28930eFb4CeF49B2d1F2C9C1199",
	"0xdD2FD4581271e230360230F9337D5c0430Bf44C0",
	"0xbDA5747bFD65F08deb54cb465eB87D40e51B197E",
}

// ErrNoAddresses is returned when generate is given nothing to do.
var ErrNoAddresses = errors.New("no addresses given")

// Env is what commands read from and write to.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Logger *slog.Logger
	// Clock stamps metadata and ledger records. Nil means time.Now.
	Clock func() time.Time
	// OpenLedger opens the identity ledger, prompting as needed.
	OpenLedger func() (*ledger.Ledger, error)
}

// DefaultEnv wires commands to the process.
func DefaultEnv(logger *slog.Logger) Env {
	return Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
		Logger: logger,
		OpenLedger: func() (*ledger.Ledger, error) {
			return OpenLedger(DataDir())
		},
	}
}

func (e Env) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

// DataDir returns the default data directory for civicid.
func DataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d + "/civicid"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".civicid"
	}
	return home + "/.local/share/civicid"
}

// ReadPassword prompts on w and reads a password without echo. Callers
// should erase the result with zcrypto.Erase.
func ReadPassword(prompt string, w io.Writer) ([]byte, error) {
	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return b, nil
}

// ReadNewPassword prompts for a new password with confirmation.
func ReadNewPassword(w io.Writer) ([]byte, error) {
	pass, err := ReadPassword("master password: ", w)
	if err != nil {
		return nil, err
	}
	confirm, err := ReadPassword("confirm password: ", w)
	if err != nil {
		zcrypto.Erase(pass)
		return nil, err
	}
	defer zcrypto.Erase(confirm)

	if !bytes.Equal(pass, confirm) {
		zcrypto.Erase(pass)
		return nil, errors.New("passwords do not match")
	}
	return pass, nil
}

// IsFirstRun checks whether the ledger has been initialized.
func IsFirstRun(dir string) bool {
	_, err := os.Stat(dir + "/salt")
	return err != nil
}

// OpenLedger prompts for the master password and opens the ledger in dir.
func OpenLedger(dir string) (*ledger.Ledger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var pass []byte
	var err error
	if IsFirstRun(dir) {
		pass, err = ReadNewPassword(os.Stderr)
	} else {
		pass, err = ReadPassword("master password: ", os.Stderr)
	}
	if err != nil {
		return nil, err
	}
	defer zcrypto.Erase(pass)

	return ledger.Open(zfilesystem.NewOSFileSystem(dir), pass)
}

// NewStore opens the artifact directories named by opts.
func NewStore(opts Options) (*artifact.Store, error) {
	images, err := artifact.OSDir(opts.ImagesDir)
	if err != nil {
		return nil, err
	}
	meta, err := artifact.OSDir(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	return artifact.New(images, meta), nil
}

// NewPipeline builds the generation pipeline for opts.
func NewPipeline(opts Options, store batch.Writer, m *metrics.Metrics, env Env) *batch.Pipeline {
	return &batch.Pipeline{
		Size:     opts.Size,
		Composer: metadata.Composer{Clock: env.Clock},
		URLs:     metadata.URLs{Base: opts.BaseURL},
		Store:    store,
		Metrics:  m,
		Logger:   env.Logger,
	}
}

// CmdGenerate generates identities for the addresses in args, or for one
// address per line of stdin when args names none.
func CmdGenerate(ctx context.Context, env Env, args []string) error {
	opts, rest, err := ParseOptions(args, env.Getenv)
	if err != nil {
		return err
	}

	inputs := rest
	if len(inputs) == 0 {
		inputs, err = readAddresses(env.Stdin)
		if err != nil {
			return err
		}
	}
	if len(inputs) == 0 {
		return ErrNoAddresses
	}

	return runBatch(ctx, env, opts, inputs)
}

// CmdExamples generates identities for the built-in example addresses.
func CmdExamples(ctx context.Context, env Env, args []string) error {
	opts, _, err := ParseOptions(args, env.Getenv)
	if err != nil {
		return err
	}
	return runBatch(ctx, env, opts, ExampleAddresses)
}

// CmdDID prints the did:ethr identifier of each address in args.
func CmdDID(env Env, args []string) error {
	opts, rest, err := ParseOptions(args, env.Getenv)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return ErrNoAddresses
	}

	type didJSON struct {
		Address string `json:"address"`
		DID     string `json:"did"`
	}

	var out []didJSON
	for _, raw := range rest {
		a, err := address.Parse(raw)
		if err != nil {
			return err
		}
		out = append(out, didJSON{Address: a.Hex(), DID: a.DID()})
	}

	if opts.JSON {
		return printJSON(env.Stdout, out)
	}
	for _, d := range out {
		fmt.Fprintln(env.Stdout, d.DID)
	}
	return nil
}

// CmdList lists all saved identities.
func CmdList(env Env, args []string) error {
	asJSON := hasFlag(args, "--json")

	l, err := env.OpenLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	records, err := l.List()
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if asJSON {
		if records == nil {
			records = []ledger.Record{}
		}
		return printJSON(env.Stdout, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(env.Stdout, "no saved identities")
		return nil
	}

	for _, r := range records {
		fmt.Fprintf(env.Stdout, "  %-42s %-12s %s\n",
			r.Address,
			r.CreatedAt.Format(time.DateOnly),
			r.TokenURI,
		)
	}
	return nil
}

// CmdForget deletes a saved identity by address. Its artifacts stay on
// disk.
func CmdForget(env Env, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: civicid forget <address>")
	}

	a, err := address.Parse(args[0])
	if err != nil {
		return err
	}

	l, err := env.OpenLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.Delete(a); err != nil {
		return fmt.Errorf("forget: %w", err)
	}
	fmt.Fprintf(env.Stdout, "deleted %s\n", a.Hex())
	return nil
}

// CmdServe hosts the artifact directories over HTTP until ctx is done.
func CmdServe(ctx context.Context, env Env, args []string) error {
	opts, _, err := ParseOptions(args, env.Getenv)
	if err != nil {
		return err
	}

	store, err := NewStore(opts)
	if err != nil {
		return err
	}

	m := metrics.New()
	p := NewPipeline(opts, store, m, env)
	s := server.New(store, metadata.URLs{Base: opts.BaseURL}, m, env.Logger)
	s.Generator = p

	return s.ListenAndServe(ctx, opts.Listen)
}

func runBatch(ctx context.Context, env Env, opts Options, inputs []string) error {
	store, err := NewStore(opts)
	if err != nil {
		return err
	}

	p := NewPipeline(opts, store, nil, env)
	result := p.Run(ctx, inputs, opts.Workers)

	if opts.Save {
		if err := record(env, p.URLs, result); err != nil {
			return err
		}
	}

	if opts.JSON {
		if err := printJSON(env.Stdout, outcomesJSON(result, p.URLs)); err != nil {
			return err
		}
	} else {
		printResult(env.Stdout, result)
	}

	if result.HasErrors() {
		return fmt.Errorf("%d of %d addresses failed", len(result.Failed()), len(result.Outcomes))
	}
	return nil
}

// record saves every successful outcome in the ledger.
func record(env Env, urls metadata.URLs, result batch.Result) error {
	ok := result.Succeeded()
	if len(ok) == 0 {
		return nil
	}

	l, err := env.OpenLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	now := env.now()
	for _, o := range ok {
		r := ledger.NewRecord(o.Address, o.Paths, urls.TokenURI(o.Address), now)
		if err := l.Put(r); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	fmt.Fprintf(env.Stderr, "saved %d\n", len(ok))
	return nil
}

// readAddresses reads one address per line, skipping blank lines and
// lines starting with #.
func readAddresses(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, nil
	}

	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read addresses: %w", err)
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
