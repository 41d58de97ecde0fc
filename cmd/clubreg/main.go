package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"club-registration/internal/academic"
	"club-registration/internal/config"
	"club-registration/internal/export"
	"club-registration/internal/models"
	"club-registration/internal/server"
)

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clubreg",
		Short: "Club registration backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newExportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("store-backend", defaults.GetString("store.backend"), "Tabular store backend (google, memory)")
	cmd.PersistentFlags().String("redis-addr", "", "Redis address for the cross-process creation guard")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "store.backend", "store-backend")
	bindFlag(cmd, "redis.addr", "redis-addr")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	config.LoadDotEnv(envFile)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap the club config spreadsheet",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Find or create the config spreadsheet and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), viper.GetViper())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.configStore.EnsureDocument(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})

	var year string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the club mappings for an academic year as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), viper.GetViper())
			if err != nil {
				return err
			}
			defer a.Close()

			if year == "" {
				year = academic.Current(time.Now)
			}
			id, err := a.configStore.EnsureDocument(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := a.configStore.ReadRows(cmd.Context(), id, year)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				AcademicYear string             `json:"academicYear"`
				Clubs        []models.ConfigRow `json:"clubs"`
			}{year, rows})
		},
	}
	list.Flags().StringVar(&year, "year", "", "Academic year label, e.g. 2025/2026 (default: current)")
	cmd.AddCommand(list)

	return cmd
}

func newExportCmd() *cobra.Command {
	var sheetID, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download a club registration sheet as .xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), viper.GetViper())
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			n, err := export.WriteXLSX(cmd.Context(), a.store, sheetID, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(out)
				return err
			}
			a.logger.Info("registrations exported", zap.String("sheet_id", sheetID), zap.Int("rows", n), zap.String("file", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&sheetID, "sheet-id", "", "Registration spreadsheet id")
	cmd.Flags().StringVarP(&out, "out", "o", "registrations.xlsx", "Output file")
	_ = cmd.MarkFlagRequired("sheet-id")
	return cmd
}

func runServer(ctx context.Context) error {
	a, err := newApp(ctx, viper.GetViper())
	if err != nil {
		return err
	}
	defer a.Close()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Config:      a.cfg,
		ConfigStore: a.configStore,
		Sink:        a.sink,
		Provisioner: a.provisioner,
		Logger:      a.logger,
		Clock:       time.Now,
	})
	if err != nil {
		return err
	}
	httpServer := server.New(a.cfg, handler)

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			zap.String("address", a.cfg.HTTPAddr),
			zap.String("store_backend", a.cfg.StoreBackend),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
