package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gluster-iot/iothreads/pkg/iothreads"
)

var cfgFile string

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	root := &cobra.Command{
		Use:   "iothreadsd",
		Short: "priority-scheduled I/O worker pool demo host",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	root.AddCommand(startCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("iothreadsd: exiting")
	}
}

func startCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "bring up the pool and serve its HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}

			pool, err := iothreads.NewPool(cfg, classify, demoHost{})
			if err != nil {
				return fmt.Errorf("starting pool: %w", err)
			}

			pool.AttachMetrics(prometheus.DefaultRegisterer)

			srv := &http.Server{
				Addr:              listenAddr,
				Handler:           newMux(pool),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				log.Info().Str("addr", listenAddr).Msg("iothreadsd: serving")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("iothreadsd: http server error")
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

			for sig := range sigCh {
				if sig == syscall.SIGHUP {
					log.Info().Msg("iothreadsd: SIGHUP received, reloading config")
					cfg, err := loadConfig(v, cfgFile)
					if err != nil {
						log.Error().Err(err).Msg("iothreadsd: reload failed")
						continue
					}
					if err := pool.Reconfigure(cfg); err != nil {
						log.Error().Err(err).Msg("iothreadsd: reconfigure failed")
					}
					continue
				}

				log.Info().Str("signal", sig.String()).Msg("iothreadsd: shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				_ = srv.Shutdown(ctx)
				err := pool.Shutdown(ctx)
				cancel()
				if err != nil {
					log.Error().Err(err).Msg("iothreadsd: pool shutdown did not complete cleanly")
				}
				return nil
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	return cmd
}

func statusCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "fetch /status from a running iothreadsd",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := httpClient.Get("http://" + addr + "/status")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, err = fmt.Println("iothreadsd status:", resp.Status)
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "address of a running iothreadsd")
	return cmd
}
