package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/apas-port/harvestflow-go/airdrop"
	"github.com/apas-port/harvestflow-go/bootstrap"
	"github.com/apas-port/harvestflow-go/client"
	"github.com/apas-port/harvestflow-go/config"
	"github.com/apas-port/harvestflow-go/ledger"
	"github.com/apas-port/harvestflow-go/mint"
	"github.com/apas-port/harvestflow-go/oracle"
	"github.com/apas-port/harvestflow-go/project"
	"github.com/apas-port/harvestflow-go/txbuild"
)

var rootCmd = &cobra.Command{
	Use:   "harvestflow",
	Short: "HarvestFlow protocol operator tool",
	Long: `harvestflow bootstraps and operates bounded-supply issuance protocols
against a shared ledger: genesis, minting, permission toggles, status
inspection, and batch reward distribution to current holders.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "configuration file path")
	pf.String("network", "", "target network (preprod, preview)")
	pf.String("data-dir", "", "data directory (registry, distribution logs)")
	pf.String("indexer-url", "", "indexer base URL")
	pf.String("indexer-key", "", "indexer project credential")
	pf.String("projects", "", "project configuration JSON file")
	pf.String("signer", "", "external signing command")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
}

func registerCommands() {
	rootCmd.AddCommand(bootstrapCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(mintCmd())
	rootCmd.AddCommand(toggleCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(airdropCmd())
}

// app wires the configured dependencies of one command invocation.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	gw       ledger.Gateway
	signer   client.Signer
	asm      *client.Assembler
	projects project.Provider
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlag(cmd, "network", &cfg.Network)
	applyFlag(cmd, "data-dir", &cfg.DataDir)
	applyFlag(cmd, "indexer-url", &cfg.IndexerURL)
	applyFlag(cmd, "indexer-key", &cfg.IndexerKey)
	applyFlag(cmd, "projects", &cfg.ProjectsFile)
	applyFlag(cmd, "log-level", &cfg.LogLevel)
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidLogLevel, cfg.LogLevel)
	}
	log.SetLevel(level)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		log.SetOutput(f)
	}

	indexerCfg, err := ledger.ResolveConfig(&ledger.IndexerConfig{
		URL:        cfg.IndexerURL,
		ProjectKey: cfg.IndexerKey,
	}, envMap(), cfg.Network)
	if err != nil {
		return nil, err
	}
	gw := ledger.NewIndexerClient(*indexerCfg)

	a := &app{cfg: cfg, log: log, gw: gw}
	if signerPath, _ := cmd.Flags().GetString("signer"); signerPath != "" {
		a.signer = client.NewCommandSigner(signerPath)
	}
	a.asm = client.NewAssembler(gw, a.signer, log, client.Options{})
	if cfg.ProjectsFile != "" {
		a.projects = project.NewCachedProvider(project.NewFileProvider(cfg.ProjectsFile), 5*time.Minute)
	}
	return a, nil
}

func (a *app) requireSigner() error {
	if a.signer == nil {
		return errors.New("a signing command is required (--signer)")
	}
	return nil
}

func (a *app) requireProjects() error {
	if a.projects == nil {
		return errors.New("a project configuration file is required (--projects)")
	}
	return nil
}

func (a *app) openStore() (*bootstrap.Store, error) {
	return bootstrap.OpenStore(a.cfg.RegistryPath())
}

func applyFlag(cmd *cobra.Command, name string, dst *string) {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		*dst = v
	}
}

func envMap() map[string]string {
	return map[string]string{
		"HARVEST_INDEXER_URL": os.Getenv("HARVEST_INDEXER_URL"),
		"HARVEST_INDEXER_KEY": os.Getenv("HARVEST_INDEXER_KEY"),
	}
}

func bootstrapCmd() *cobra.Command {
	var funding, collector string
	var price, maxSupply, aprNum, aprDen uint64
	var maturation int64
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create a new protocol instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSigner(); err != nil {
				return err
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			params := &bootstrap.Params{
				FundingAddress: funding,
				FeeCollector:   collector,
				UnitPrice:      price,
				MaxSupply:      maxSupply,
				APRNumerator:   aprNum,
				APRDenominator: aprDen,
				MaturationTime: maturation,
				Network:        a.cfg.Network,
			}
			b := bootstrap.NewBootstrapper(a.gw)

			ctx := cmd.Context()
			var res *bootstrap.Result
			outcome, err := a.asm.Execute(ctx, func(ctx context.Context) (*txbuild.Unsigned, error) {
				r, err := b.Prepare(ctx, params)
				if err != nil {
					return nil, err
				}
				res = r
				return r.Unsigned, nil
			})
			if err != nil {
				return err
			}

			// The identity reference is worthless if it is not persisted;
			// register before anything else can go wrong.
			err = store.Put(&bootstrap.Protocol{
				PolicyID:     res.PolicyID,
				Ref:          res.Ref,
				Network:      a.cfg.Network,
				StateAddress: res.StateAddress,
				CreatedAt:    time.Now().UTC(),
			})
			if err != nil {
				return err
			}

			authUnit := ledger.Unit(res.PolicyID, oracle.AuthTokenName)
			if _, err := a.asm.AwaitUnit(ctx, authUnit, 2*time.Minute); err != nil {
				a.log.WithError(err).Warn("state not yet visible, check status later")
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendRow(table.Row{"Policy", res.PolicyID})
			tw.AppendRow(table.Row{"Reference", res.Ref.String()})
			tw.AppendRow(table.Row{"State", res.StateAddress})
			tw.AppendRow(table.Row{"Tx", outcome.TxHash})
			tw.AppendRow(table.Row{"Max supply", res.Record.MaxSupply})
			tw.AppendRow(table.Row{"Unit price", res.Record.UnitPrice})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&funding, "funding", "", "funding wallet address")
	cmd.Flags().StringVar(&collector, "collector", "", "fee collector address")
	cmd.Flags().Uint64Var(&price, "price", 0, "unit price in lovelace")
	cmd.Flags().Uint64Var(&maxSupply, "max-supply", 0, "maximum supply")
	cmd.Flags().Uint64Var(&aprNum, "apr-numerator", 0, "APR numerator")
	cmd.Flags().Uint64Var(&aprDen, "apr-denominator", 100, "APR denominator")
	cmd.Flags().Int64Var(&maturation, "maturation", 0, "maturation time (unix seconds)")
	_ = cmd.MarkFlagRequired("funding")
	_ = cmd.MarkFlagRequired("collector")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("max-supply")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [policy-id]",
		Short: "Show registered protocols or one protocol's live state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				protocols, err := store.List()
				if err != nil {
					return err
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Policy", "Network", "Reference", "Created"})
				for _, p := range protocols {
					tw.AppendRow(table.Row{p.PolicyID, p.Network, p.Ref.String(),
						p.CreatedAt.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			}

			coord := mint.NewCoordinator(a.gw, a.projects, a.cfg.Network, 0)
			record, err := coord.CurrentRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendRow(table.Row{"Issued", record.Index})
			tw.AppendRow(table.Row{"Max supply", record.MaxSupply})
			tw.AppendRow(table.Row{"Remaining", record.Remaining()})
			tw.AppendRow(table.Row{"Unit price", record.UnitPrice})
			tw.AppendRow(table.Row{"Minting", onOff(record.MintingEnabled)})
			tw.AppendRow(table.Row{"Trading", onOff(record.TradingEnabled)})
			tw.AppendRow(table.Row{"Fee collector", record.FeeCollector})
			tw.Render()
			return nil
		},
	}
}

func mintCmd() *cobra.Command {
	var payer string
	var quantity uint64
	cmd := &cobra.Command{
		Use:   "mint <policy-id> <recipient>",
		Short: "Issue units to a recipient",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSigner(); err != nil {
				return err
			}
			if err := a.requireProjects(); err != nil {
				return err
			}

			coord := mint.NewCoordinator(a.gw, a.projects, a.cfg.Network, 0)
			req := &mint.MintRequest{
				PolicyID:     args[0],
				Recipient:    args[1],
				PayerAddress: payer,
				Quantity:     quantity,
			}

			var prep *mint.Prepared
			outcome, err := a.asm.Execute(cmd.Context(), func(ctx context.Context) (*txbuild.Unsigned, error) {
				p, err := coord.PrepareMint(ctx, req)
				if err != nil {
					return nil, err
				}
				prep = p
				return p.Unsigned, nil
			})
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Unit", "Recipient"})
			for _, unit := range prep.Units {
				tw.AppendRow(table.Row{unit, args[1]})
			}
			tw.Render()
			fmt.Printf("tx %s paid %d lovelace (settled: %v)\n", outcome.TxHash, prep.Payment, outcome.Settled)
			return nil
		},
	}
	cmd.Flags().StringVar(&payer, "payer", "", "paying wallet address")
	cmd.Flags().Uint64Var(&quantity, "quantity", 1, "units to issue")
	_ = cmd.MarkFlagRequired("payer")
	return cmd
}

func toggleCmd() *cobra.Command {
	var admin string
	cmd := &cobra.Command{
		Use:   "toggle <policy-id> <minting|trading> <on|off>",
		Short: "Flip a protocol permission flag",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := toggleTransition(args[1], args[2])
			if err != nil {
				return err
			}
			return runAdmin(cmd, args[0], admin, tr)
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "fee collector address signing the toggle")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}

func stopCmd() *cobra.Command {
	var admin string
	cmd := &cobra.Command{
		Use:   "stop <policy-id>",
		Short: "Permanently stop a protocol (irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, args[0], admin, oracle.Stop())
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "fee collector address signing the stop")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}

func toggleTransition(flag, state string) (oracle.Transition, error) {
	switch flag + "/" + state {
	case "minting/on":
		return oracle.EnableMinting(), nil
	case "minting/off":
		return oracle.DisableMinting(), nil
	case "trading/on":
		return oracle.EnableTrading(), nil
	case "trading/off":
		return oracle.DisableTrading(), nil
	}
	return oracle.Transition{}, fmt.Errorf("unknown toggle %q %q", flag, state)
}

func runAdmin(cmd *cobra.Command, policyID, admin string, tr oracle.Transition) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if err := a.requireSigner(); err != nil {
		return err
	}

	coord := mint.NewCoordinator(a.gw, a.projects, a.cfg.Network, 0)
	req := &mint.AdminRequest{PolicyID: policyID, AdminAddress: admin}

	var prep *mint.Prepared
	outcome, err := a.asm.Execute(cmd.Context(), func(ctx context.Context) (*txbuild.Unsigned, error) {
		p, err := coord.PrepareAdmin(ctx, req, tr)
		if err != nil {
			return nil, err
		}
		prep = p
		return p.Unsigned, nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s applied in tx %s (minting: %s, trading: %s)\n",
		tr.Kind(), outcome.TxHash,
		onOff(prep.Next.MintingEnabled), onOff(prep.Next.TradingEnabled))
	return nil
}

func airdropCmd() *cobra.Command {
	var funding, resumeFrom, logPath string
	var batchSize int
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "airdrop <policy-id> <network> <rate-per-unit>",
		Short: "Distribute rewards to current unit holders",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("rate per unit: %w", err)
			}
			if err := cmd.Flags().Set("network", args[1]); err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSigner(); err != nil {
				return err
			}

			if logPath == "" && resumeFrom == "" {
				logPath = filepath.Join(a.cfg.LogDir(),
					fmt.Sprintf("%s-%d.json", args[0], time.Now().Unix()))
			}

			d := airdrop.NewDistributor(a.gw, a.asm, a.log)
			report, err := d.Run(cmd.Context(), &airdrop.RunParams{
				PolicyID:        args[0],
				Network:         a.cfg.Network,
				FundingAddress:  funding,
				RatePerUnit:     rate,
				BatchSize:       batchSize,
				LogPath:         logPath,
				ResumePath:      resumeFrom,
				InterBatchDelay: delay,
			})
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendRow(table.Row{"Run", report.Log.RunID})
			tw.AppendRow(table.Row{"Holders", report.Holders})
			tw.AppendRow(table.Row{"Paid", report.Paid})
			tw.AppendRow(table.Row{"Skipped", report.Skipped})
			tw.AppendRow(table.Row{"Batches", report.Batches})
			tw.AppendRow(table.Row{"Lovelace", report.TotalLovelace})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&funding, "funding", "", "funding wallet address")
	cmd.Flags().StringVar(&resumeFrom, "resume-from", "", "resume from an existing distribution log")
	cmd.Flags().StringVar(&logPath, "log", "", "distribution log path (fresh runs)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "payouts per transaction")
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay between batches")
	_ = cmd.MarkFlagRequired("funding")
	return cmd
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
