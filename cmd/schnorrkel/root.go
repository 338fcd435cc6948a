package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
	"github.com/aa-schnorr/schnorrkel/internal/config"
	"github.com/aa-schnorr/schnorrkel/internal/logging"
	"github.com/aa-schnorr/schnorrkel/mailbox"
	"github.com/aa-schnorr/schnorrkel/store"
)

// app carries what every command needs once the configuration is loaded.
type app struct {
	out io.Writer

	configPath string
	storeDir   string
	curveName  string

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "schnorrkel",
		Short:         "Multi-signer Schnorr signatures for smart contract accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML configuration file")
	flags.StringVar(&a.storeDir, "store-dir", "", "override the key and nonce store directory")
	flags.StringVar(&a.curveName, "curve", "", "override the curve (secp256k1 or ed25519)")

	root.AddCommand(
		newKeyCmd(a),
		newAddressCmd(a),
		newNoncesCmd(a),
		newSignCmd(a),
		newCombineCmd(a),
		newVerifyCmd(a),
		newSessionCmd(a),
		newModuleCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storeDir != "" {
		cfg.Store.Dir = a.storeDir
	}
	if a.curveName != "" {
		cfg.Curve = a.curveName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

func (a *app) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

func (a *app) curve() (schnorrkel.Curve, error) {
	return a.cfg.CurveEngine()
}

func (a *app) openStore() (*store.Store, error) {
	curve, err := a.curve()
	if err != nil {
		return nil, err
	}
	return store.Open(curve, store.Options{Dir: a.cfg.Store.Dir, Logger: a.logger})
}

// loadSigner opens the store and builds a signer for the named key whose
// nonces persist in that store. The caller closes the store.
func (a *app) loadSigner(name string) (*schnorrkel.Signer, *store.Store, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	kp, err := st.LoadKeyPair(name)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	signer, err := schnorrkel.NewSigner(kp,
		schnorrkel.WithNonceStore(st),
		schnorrkel.WithAuditHandler(a.audit()),
	)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return signer, st, nil
}

func (a *app) audit() schnorrkel.AuditEventHandler {
	return schnorrkel.NewZapAuditHandler(a.logger)
}

func (a *app) openMailbox() (mailbox.Mailbox, error) {
	switch a.cfg.Mailbox.Backend {
	case "redis":
		return mailbox.NewRedisMailbox(a.cfg.RedisOptions(), a.logger)
	default:
		return nil, fmt.Errorf("mailbox backend %q is process-local; session commands need mailbox.backend: redis", a.cfg.Mailbox.Backend)
	}
}

// serveMetrics exposes reg on the configured listen address until ctx ends.
// It returns a no-op stop when metrics are disabled.
func (a *app) serveMetrics(ctx context.Context, reg *prometheus.Registry) func() {
	if a.cfg.Metrics.Listen == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics endpoint stopped", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("listen", a.cfg.Metrics.Listen))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// parsePublicKeys decodes a comma separated list of hex public keys.
func parsePublicKeys(curve schnorrkel.Curve, list []string) ([]schnorrkel.Point, error) {
	if len(list) == 0 {
		return nil, errors.New("at least one public key is required")
	}
	keys := make([]schnorrkel.Point, len(list))
	for i, s := range list {
		p, err := schnorrkel.ParsePublicKey(curve, strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("public key %d: %w", i, err)
		}
		keys[i] = p
	}
	return keys, nil
}

func parseNonces(curve schnorrkel.Curve, list []string) ([]*schnorrkel.PublicNonces, error) {
	nonces := make([]*schnorrkel.PublicNonces, len(list))
	for i, s := range list {
		n, err := schnorrkel.PublicNoncesFromBytes(curve, common.FromHex(strings.TrimSpace(s)))
		if err != nil {
			return nil, fmt.Errorf("nonce commitment %d: %w", i, err)
		}
		nonces[i] = n
	}
	return nonces, nil
}

// messageHash returns the 32-byte hash to sign: --message as hex, or the
// keccak256 hash of --text.
func messageHash(hexMsg, text string) ([]byte, error) {
	switch {
	case hexMsg != "" && text != "":
		return nil, errors.New("use either --message or --text")
	case text != "":
		return schnorrkel.HashMessage([]byte(text)), nil
	case hexMsg != "":
		msg, err := hexutil.Decode(ensure0x(hexMsg))
		if err != nil {
			return nil, fmt.Errorf("invalid message: %w", err)
		}
		if len(msg) != 32 {
			return nil, schnorrkel.ErrInvalidMessage.WithDetails("expected 32 bytes, got %d", len(msg))
		}
		return msg, nil
	default:
		return nil, errors.New("a message is required (--message or --text)")
	}
}

func ensure0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}

func addMessageFlags(cmd *cobra.Command, hexMsg, text *string) {
	cmd.Flags().StringVarP(hexMsg, "message", "m", "", "32-byte message hash as hex")
	cmd.Flags().StringVar(text, "text", "", "sign the keccak256 hash of this text")
}
