package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"identityguard/internal/adapters/geoip"
	"identityguard/internal/adapters/orm"
	"identityguard/internal/asn"
	"identityguard/internal/audit"
	"identityguard/internal/cache"
	"identityguard/internal/circuitbreaker"
	"identityguard/internal/config"
	"identityguard/internal/device"
	"identityguard/internal/geo"
	"identityguard/internal/history"
	"identityguard/internal/magic"
	"identityguard/internal/ratelimit"
	"identityguard/internal/risk"
	"identityguard/internal/telemetry"
	"identityguard/migrations"
)

func newServeCommand(configFile, databaseURL *string) *cobra.Command {
	var cityDBPath string
	var asnDBPath string
	var whoisServerOverride string
	var dnsResolver string
	var otlpTraceEndpoint string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run identityguard's scheduled maintenance (asn sweeper) and hold its wiring ready",
		Long: `serve constructs the full identityguard component graph (rate limiter, cache
manager, geo/asn resolvers, risk engine, device lifecycle manager, audit sink)
against the configured database and starts the ASN sweeper's cron schedule.

There is no bundled HTTP listener: per spec §1, the servlet/HTTP front end
that calls into this graph is out of scope for this module.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configFile, resolveDatabaseURL(*databaseURL), cityDBPath, asnDBPath, whoisServerOverride, dnsResolver, otlpTraceEndpoint)
		},
	}

	cmd.Flags().StringVar(&cityDBPath, "geoip-city-db", "", "path to a GeoLite2/GeoIP2 City .mmdb file")
	cmd.Flags().StringVar(&asnDBPath, "geoip-asn-db", "", "path to a GeoLite2/GeoIP2 ASN .mmdb file (optional)")
	cmd.Flags().StringVar(&whoisServerOverride, "whois-server", "", "override whois.server from config")
	cmd.Flags().StringVar(&dnsResolver, "dns-resolver", magic.DefaultDNSResolver, "recursive resolver (host:port) queried for the cymru reverse-DNS asn stage")
	cmd.Flags().StringVar(&otlpTraceEndpoint, "otlp-endpoint", "", "OTLP/gRPC collector (host:port) to export traces to, in addition to stdout")

	return cmd
}

func runServe(configFile, databaseURL, cityDBPath, asnDBPath, whoisServerOverride, dnsResolver, otlpTraceEndpoint string) error {
	telemetrySvc, err := telemetry.NewTelemetryService(context.Background(), "identityguardd",
		telemetry.WithOTLPTraceEndpoint(otlpTraceEndpoint))
	if err != nil {
		return fmt.Errorf("starting telemetry: %w", err)
	}
	defer telemetrySvc.Shutdown()
	logger := telemetrySvc.Slogger

	_, startupSpan := telemetrySvc.TracesProvider.Tracer("identityguardd").Start(context.Background(), "serve-startup")
	defer startupSpan.End()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if whoisServerOverride != "" {
		cfg.WHOIS.Server = whoisServerOverride
	}

	if databaseURL == "" {
		return fmt.Errorf("no database URL provided: set --database-url or DATABASE_URL")
	}
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtaining raw connection: %w", err)
	}
	if err := migrations.ApplyMigrations(sqlDB); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	deviceStore := orm.NewDeviceRecordRepository(db)
	userStore := orm.NewUserRepository(db)
	asnStore := orm.NewAsnEntryRepository(db)

	caches := cache.NewManager()
	asnCache := caches.Named(magic.CacheNameASN, magic.DefaultASNCacheTTL)
	historyStore := history.NewStore(caches.Named(magic.CacheNameLocationHistory, magic.DefaultLocationHistoryTTL), magic.DefaultHistoryMax)

	var mmReader *geoip.Reader
	var geoResolver *geo.Resolver
	var chain []asn.External

	if cityDBPath != "" {
		mmReader, err = geoip.Open(cityDBPath, asnDBPath)
		if err != nil {
			return fmt.Errorf("opening geoip database: %w", err)
		}
		defer mmReader.Close()
		chain = append(chain, asn.NewGeoIPStage(mmReader))
	}
	if dnsResolver == "" {
		dnsResolver = magic.DefaultDNSResolver
	}
	chain = append(chain, asn.NewDNSStage(dnsResolver))
	chain = append(chain, asn.NewWHOISStage(cfg.WHOIS.Server))

	breaker := circuitbreaker.New("asn-external", magic.DefaultBreakerFailureThreshold, magic.DefaultBreakerOpenDuration, logger)
	asnResolver := asn.NewResolver(asnCache, asnStore, chain, cfg.Asn.ExternalRate, logger, asn.WithBreaker(breaker))

	sweeper := asn.NewSweeper(asnStore, cfg.Asn.StaleThreshold, logger)
	if err := sweeper.Start(cfg.Asn.CleanupCron); err != nil {
		return fmt.Errorf("starting asn sweeper: %w", err)
	}
	defer sweeper.Stop()

	var riskVerifier device.RiskVerifier
	if mmReader != nil {
		geoResolver = geo.NewResolver(mmReader, asnResolver, logger)

		riskConfig := risk.DefaultConfig()
		riskConfig.TimeWindow = time.Duration(cfg.Geo.TimeWindowHours) * time.Hour
		riskConfig.ImpossibleSpeedKMH = cfg.Geo.ImpossibleSpeedKMH
		riskConfig.VPNReputationThreshold = cfg.Geo.VPNReputationThreshold
		riskConfig.KnownVPNASNs = toASNSet(cfg.Geo.KnownVPNAsns)
		riskConfig.HighRiskCountries = toCountrySet(cfg.Geo.HighRiskCountries)

		riskVerifier = risk.NewEngine(geoResolver, historyStore, nil, nil, riskConfig)
	}

	limiter := ratelimit.NewFixedWindowLimiter(cfg.RateLimit.Window, cfg.RateLimit.Limit, logger)

	sink, err := audit.NewSink(logger, magic.DefaultAuditQueueCapacity, telemetrySvc.MetricsProvider.Meter("identityguard"))
	if err != nil {
		return fmt.Errorf("starting audit sink: %w", err)
	}
	defer sink.Close()

	generator := device.NewGenerator(cfg.Device.FingerprintSalt)
	ipPolicy := device.NewStaticIPPolicy(nil, nil)

	managerOpts := []device.Option{
		device.WithMaxDevices(cfg.Device.MaxPerUser),
		device.WithMaxFailedAttempts(cfg.Device.MaxFailedAttempts),
	}
	if geoResolver != nil {
		managerOpts = append(managerOpts, device.WithLocationResolver(geoResolver))
	}

	manager := device.NewManager(generator, deviceStore, userStore, ipPolicy, limiter, riskVerifier, sink, logger, managerOpts...)
	_ = manager // held ready for the (out-of-scope) HTTP front end to call into; see spec §1

	logger.Info("identityguard wiring ready", slog.Bool("geo_enabled", geoResolver != nil))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	_, cancel := context.WithTimeout(context.Background(), magic.ShutdownTimeout)
	defer cancel()

	return nil
}

func toASNSet(asns []uint32) map[uint32]struct{} {
	out := make(map[uint32]struct{}, len(asns))
	for _, a := range asns {
		out[a] = struct{}{}
	}
	return out
}

func toCountrySet(countries []string) map[string]struct{} {
	out := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		out[c] = struct{}{}
	}
	return out
}
