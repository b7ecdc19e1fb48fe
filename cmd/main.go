package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/yvy-orbital/yvy-field-service/internal/api"
	"github.com/yvy-orbital/yvy-field-service/internal/dataset"
	"github.com/yvy-orbital/yvy-field-service/internal/delivery"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/indices"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/notification"
	"github.com/yvy-orbital/yvy-field-service/internal/properties"
	"github.com/yvy-orbital/yvy-field-service/internal/sentinel"
	"github.com/yvy-orbital/yvy-field-service/internal/storage"
	"github.com/yvy-orbital/yvy-field-service/internal/ui"
	"github.com/yvy-orbital/yvy-field-service/internal/weather"
	"github.com/yvy-orbital/yvy-field-service/internal/zoning"
	"github.com/yvy-orbital/yvy-field-service/output"
)

func printBanner() {
	figure1 := figure.NewFigure("Yvy", "isometric1", true)
	bannercolor.Green(figure1.String())
	bannercolor.Cyan("field service")
	fmt.Println()
}

// argValue returns the value of --name=value or --name value.
func argValue(name string) (string, bool) {
	for i, arg := range os.Args {
		if strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"="), true
		}
		if arg == name && i+1 < len(os.Args) {
			return os.Args[i+1], true
		}
	}
	return "", false
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func intArg(name string, dst *int) {
	v, ok := argValue(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Printf("\033[31mInvalid %s value: %s\033[0m\n", name, v)
		os.Exit(1)
	}
	*dst = n
}

type services struct {
	cfg      properties.Config
	analyzer *delivery.Analyzer
	zoner    *delivery.Zoner
	readings *storage.ReadingRepository
	discord  *notification.Discord
	kmeans   *zoning.KMeans
	closers  []func() error
}

func (s *services) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			logger.Log.WithError(err).Warn("failed to close resource")
		}
	}
}

func build(ctx context.Context, cfg properties.Config) (*services, error) {
	s := &services{cfg: cfg, discord: notification.NewDiscord(cfg.Discord)}
	indices.FetchWorkers = max(cfg.Copernicus.Workers, 1)

	var provider imagery.Provider
	client, err := sentinel.NewClient(cfg.Copernicus, nil)
	switch {
	case errors.Is(err, sentinel.ErrMissingCredentials):
		logger.Log.Warn("Copernicus credentials not set, analyses will have no imagery and zoning falls back to synthetic samples")
	case err != nil:
		return nil, err
	default:
		provider = client
	}

	images := output.NewFileImageStore(cfg.RootPath, cfg.PublicURL)
	s.analyzer = delivery.NewAnalyzer(provider, images)
	s.analyzer.Settings = delivery.SettingsFrom(cfg.Analysis)
	s.analyzer.Notifier = s.discord
	if cfg.Weather.Enabled {
		w := weather.NewClient(filepath.Join(cfg.RootPath, "data", "weather"))
		if cfg.Weather.ArchiveURL != "" {
			w.ArchiveURL = cfg.Weather.ArchiveURL
		}
		s.analyzer.Weather = w
	}

	s.readings, err = storage.Open(ctx, cfg.Database.URL)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Log.Info("DATABASE_URL not set, readings will not be stored")
	case err != nil:
		return nil, err
	default:
		if err := s.readings.Migrate(ctx); err != nil {
			s.readings.Close()
			return nil, err
		}
		s.analyzer.Readings = s.readings
		s.closers = append(s.closers, s.readings.Close)
	}

	s.kmeans = zoning.NewKMeans()
	var clusterer zoning.Clusterer = s.kmeans
	if cfg.Zoning.ClusteringAddr != "" {
		remote, err := zoning.NewRemoteClusterer(cfg.Zoning.ClusteringAddr)
		if err != nil {
			return nil, err
		}
		clusterer = remote
		s.closers = append(s.closers, remote.Close)
		logger.Log.WithField("addr", cfg.Zoning.ClusteringAddr).Info("using remote clustering service")
	}

	sampler := dataset.NewSampler(provider)
	sampler.Scale = cfg.Analysis.SampleScale
	s.zoner = delivery.NewZoner(sampler, zoning.NewEngine(clusterer))
	return s, nil
}

func serve(s *services) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := &api.Server{
		Analyzer:  s.analyzer,
		Zoner:     s.zoner,
		ImagesDir: filepath.Join(s.cfg.RootPath, "data", "images"),
		Timeout:   s.cfg.Server.RequestTimeout,
	}
	if s.readings != nil {
		handler.Readings = s.readings
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	zoning.RegisterClusteringServer(grpcServer, s.kmeans)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.GrpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %d: %w", s.cfg.Server.GrpcPort, err)
	}

	errs := make(chan error, 2)
	go func() {
		logger.Log.WithField("port", s.cfg.Server.GrpcPort).Info("clustering gRPC server listening")
		errs <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Log.WithField("port", s.cfg.Server.Port).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errs:
	}

	logger.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	grpcServer.GracefulStop()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}

func initCLI(s *services) {
	defer func() {
		if r := recover(); r != nil {
			pc, file, line, ok := runtime.Caller(3)
			var location string
			if ok {
				fn := runtime.FuncForPC(pc)
				location = fmt.Sprintf("%s:%d in %s", file, line, fn.Name())
			} else {
				location = "Unknown location"
			}

			fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
			fmt.Printf("\033[31mLocation: %s\033[0m\n", location)
			fmt.Printf("\033[31mPlease check the input and try again.\033[0m\n")
			fmt.Printf("\033[31mExiting...\033[0m\n")

			stack := debug.Stack()
			errMessage := fmt.Sprintf("Yvy CLI panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, stack)
			if err := s.discord.SendError(context.Background(), errMessage); err != nil {
				fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
			}
		}
	}()

	app := &ui.App{
		Analyzer: s.analyzer,
		Zoner:    s.zoner,
		Readings: s.readings,
		Notifier: s.discord,
		RootPath: s.cfg.RootPath,
		K:        s.cfg.Zoning.K,
		Timeout:  s.cfg.Server.RequestTimeout,
	}
	app.ShowMenu()
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			fmt.Printf("\033[33mNo .env file found, using environment variables\033[0m\n")
		}
	}

	configPath := os.Getenv("CONFIG_PATH")
	if v, ok := argValue("--config"); ok {
		configPath = v
	}
	cfg, err := properties.Load(configPath)
	if err != nil {
		fmt.Printf("\033[31m%s\033[0m\n", err.Error())
		os.Exit(1)
	}
	intArg("--port", &cfg.Server.Port)
	intArg("--grpc-port", &cfg.Server.GrpcPort)

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		fmt.Printf("\033[31mFailed to initialise logger: %s\033[0m\n", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	s, err := build(ctx, cfg)
	cancel()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to start")
	}
	defer s.Close()

	if hasArg("--serve") {
		if err := serve(s); err != nil {
			logger.Log.WithError(err).Error("server stopped")
			s.discord.SendError(context.Background(), fmt.Sprintf("Yvy field service stopped: %s", err.Error()))
		}
		return
	}

	printBanner()
	initCLI(s)
}
