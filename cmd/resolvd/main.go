package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dnsscience/resolvd/internal/cache"
	"github.com/dnsscience/resolvd/internal/config"
	"github.com/dnsscience/resolvd/internal/metrics"
	"github.com/dnsscience/resolvd/internal/server"
)

var (
	configPath  = flag.String("config", "", "YAML config file (optional, overrides built-in defaults)")
	udpAddr     = flag.String("udp", "", "UDP listen address (overrides config)")
	tcpAddr     = flag.String("tcp", "", "TCP listen address (overrides config)")
	metricsAddr = flag.String("metrics", ":9153", "Prometheus metrics listen address, empty disables")
	stats       = flag.Bool("stats", true, "Print statistics periodically")
)

func main() {
	flag.Parse()

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                                                              ║")
	fmt.Println("║              resolvd - Recursive DNS Resolver                ║")
	fmt.Println("║                                                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()

	cfgFile := config.Default()
	if *configPath != "" {
		var err error
		cfgFile, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := cfgFile.ServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building server config: %v\n", err)
		os.Exit(1)
	}
	if *udpAddr != "" {
		cfg.UDPAddr = *udpAddr
	}
	if *tcpAddr != "" {
		cfg.TCPAddr = *tcpAddr
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  UDP Address:      %s\n", cfg.UDPAddr)
	fmt.Printf("  TCP Address:      %s\n", cfg.TCPAddr)
	fmt.Printf("  UDP Readers:      %d\n", cfg.UDPReaders)
	fmt.Printf("  CPU Cores:        %d\n", runtime.NumCPU())
	fmt.Printf("  DNSSEC:           %v\n", cfg.ResolverConfig.EnableDNSSEC)
	fmt.Printf("  Query Minimise:   %v\n", cfg.ResolverConfig.EnableMinimisation)
	fmt.Printf("  Max Referrals:    %d\n", cfg.ResolverConfig.MaxHops)
	fmt.Printf("  DNS Cookies:      %v\n", cfg.EnableCookies)
	fmt.Printf("  RRL:              %v\n", cfg.EnableRRL)
	fmt.Println()

	srv, err := server.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("resolvd started successfully!")
	fmt.Println()

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, srv)
	}
	if *stats {
		go printStats(srv)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println()

	if err := srv.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping server: %v\n", err)
		os.Exit(1)
	}
}

func serveMetrics(addr string, srv *server.Server) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{Addr: addr, Handler: mux}
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			cs := srv.Resolver().CacheStats()
			metrics.UpdateCacheGauges(cs.Hits, cs.Misses, cs.BytesUsed)
		}
	}()
	_ = httpServer.ListenAndServe()
}

func printStats(srv *server.Server) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	lastQueries := uint64(0)
	lastTime := time.Now()

	for range ticker.C {
		s := srv.GetStats()
		now := time.Now()
		elapsed := now.Sub(lastTime).Seconds()
		qps := float64(s.Queries-lastQueries) / elapsed

		fmt.Printf("═══════════════════════════════════════════════════════════\n")
		fmt.Printf("Statistics (%.1fs interval):\n", elapsed)
		fmt.Printf("  Queries:    %10d  (%.0f qps)\n", s.Queries, qps)
		fmt.Printf("  Answers:    %10d\n", s.Answers)
		fmt.Printf("  Errors:     %10d\n", s.Errors)
		fmt.Printf("  NXDOMAIN:   %10d\n", s.NXDOMAIN)
		fmt.Printf("  Dropped:    %10d\n", s.Dropped)

		if cs, ok := s.Cache.(cache.Stats); ok {
			fmt.Printf("\nCache:\n")
			fmt.Printf("  Hits:   %10d  (%.1f%% hit rate)\n", cs.Hits, cs.HitRate*100)
			fmt.Printf("  Misses: %10d\n", cs.Misses)
			fmt.Printf("  Size:   %10d entries, %d bytes\n", cs.Size, cs.BytesUsed)
		}
		fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

		lastQueries = s.Queries
		lastTime = now
	}
}
