package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/Brownie44l1/foundry-express/internal/body"
	"github.com/Brownie44l1/foundry-express/internal/config"
	"github.com/Brownie44l1/foundry-express/internal/request"
	"github.com/Brownie44l1/foundry-express/internal/response"
	"github.com/Brownie44l1/foundry-express/internal/router"
	"github.com/Brownie44l1/foundry-express/internal/server"
)

//go:embed send_data.html
var sendDataPage string

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	printConfig := flag.Bool("print-config", false, "print the effective config and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			log.Fatalf("failed to render config: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	r, err := router.New(cfg.RouterSettings())
	if err != nil {
		log.Fatalf("failed to create router: %v", err)
	}
	if err := registerRoutes(r); err != nil {
		log.Fatalf("failed to register routes: %v", err)
	}

	srv := server.New(cfg.ServerSettings(), r, server.WithLogger(logger))
	srv.Use(
		server.RequestIDMiddleware(),
		server.MetricsMiddleware(srv.Metrics()),
		server.LoggingMiddleware(logger),
		server.RecoveryMiddleware(logger),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	color.Cyan("-- Webserver listening on %s", cfg.Server.Addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		log.Fatalf("server error: %v", err)
	case <-sigChan:
	}

	fmt.Println("\nShutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}

	stats := srv.Stats()
	fmt.Printf("\nFinal Stats:\n")
	fmt.Printf("   Total Requests: %d\n", stats.RequestsTotal)
	fmt.Printf("   4xx: %d  5xx: %d\n", stats.Errors4xx, stats.Errors5xx)
	fmt.Printf("   Average Latency: %s\n", stats.AverageLatency)
}

func newLogger(cfg config.LogConfig) (server.Logger, error) {
	if cfg.Otel {
		return server.NewOtelLogger("foundry-express"), nil
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	return server.NewTextLogger(os.Stderr, level), nil
}

func registerRoutes(r *router.Router) error {
	if err := r.Get("/", handleHome); err != nil {
		return err
	}
	if err := r.Post("/receive_json", handleReceiveJSON, body.JSON); err != nil {
		return err
	}
	if err := r.Get("/send_json", handleSendJSON); err != nil {
		return err
	}
	if err := r.Get("/redirect", handleRedirect); err != nil {
		return err
	}

	// Invoked for every routed request, once its body is parsed
	return r.Use(printRequest)
}

func handleHome(req *request.Request, w *response.Writer) {
	w.HTML("Welcome to the example foundry-express server!")
}

func handleReceiveJSON(req *request.Request, w *response.Writer) {
	fmt.Println("\nReceived JSON data from the webpage! Here it is:")
	fmt.Printf("%v\n", req.ParsedBody)

	fmt.Println("\nTo demonstrate that you can access the body content as a dictionary:")
	fmt.Println(lookup(req.ParsedBody, "microsoft", "redmond"))

	w.Text("Got it!")
}

// handleSendJSON serves a page that posts a JSON document to /receive_json
func handleSendJSON(req *request.Request, w *response.Writer) {
	w.HTML(sendDataPage)
}

func handleRedirect(req *request.Request, w *response.Writer) {
	w.Redirect("/")
}

func printRequest(req *request.Request, w *response.Writer) {
	fmt.Printf("%s %s\n", color.GreenString(req.Method), color.YellowString(req.Path))
}

// lookup walks nested JSON objects, returning nil when a key is missing
func lookup(v any, keys ...string) any {
	for _, key := range keys {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[key]
	}
	return v
}
