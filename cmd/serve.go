package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/orchestrate"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for triggering collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initCollect(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /collect", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Sector       string  `json:"sector"`
				Region       string  `json:"region"`
				MaxLeads     int     `json:"max_leads"`
				QualityFloor float64 `json:"quality_floor"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.Sector == "" || req.Region == "" {
				http.Error(w, `{"error":"sector and region are required"}`, http.StatusBadRequest)
				return
			}
			if req.MaxLeads == 0 {
				req.MaxLeads = cfg.Collect.MaxLeads
			}
			if req.QualityFloor == 0 {
				req.QualityFloor = cfg.Collect.QualityFloor
			}

			// Run the collection asynchronously; progress lands in the store.
			go func() {
				res, err := env.Orchestrator.Collect(ctx, orchestrate.Request{
					Sector:       req.Sector,
					Region:       req.Region,
					MaxLeads:     req.MaxLeads,
					QualityFloor: req.QualityFloor,
				})
				if err != nil {
					zap.L().Error("triggered collection failed",
						zap.String("sector", req.Sector),
						zap.String("region", req.Region),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("triggered collection complete",
					zap.String("run_id", res.Run.ID),
					zap.Int("accepted", res.Summary.Accepted),
				)
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "accepted",
				"sector": req.Sector,
				"region": req.Region,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
