package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dnsscience/resolvd/api/grpc/admin"
	"github.com/dnsscience/resolvd/api/grpc/middleware"
	grpcserver "github.com/dnsscience/resolvd/api/grpc/server"
	"github.com/dnsscience/resolvd/internal/config"
	"github.com/dnsscience/resolvd/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config file")
	listen := flag.String("listen", ":8443", "gRPC listen address (overrides config admin_listen)")
	metricsListen := flag.String("metrics-listen", ":9090", "Prometheus metrics listen address")
	cert := flag.String("tls-cert", "", "TLS certificate file")
	key := flag.String("tls-key", "", "TLS private key file")
	flag.Parse()

	cfgFile := config.Default()
	if *cfgPath != "" {
		c, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfgFile = c
	}

	eListen := *listen
	if cfgFile.AdminListen != "" && *listen == ":8443" {
		eListen = cfgFile.AdminListen
	}

	srvCfg, err := cfgFile.ServerConfig()
	if err != nil {
		log.Fatalf("build server config: %v", err)
	}
	resolvdSrv, err := server.New(srvCfg)
	if err != nil {
		log.Fatalf("init resolver server: %v", err)
	}
	if err := resolvdSrv.Start(); err != nil {
		log.Fatalf("start resolver server: %v", err)
	}
	defer resolvdSrv.Stop()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("metrics listening on %s", *metricsListen)
		if err := http.ListenAndServe(*metricsListen, mux); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	cfg := grpcserver.Config{
		ListenAddr:  eListen,
		TLSCertFile: *cert,
		TLSKeyFile:  *key,
		APIKeys:     cfgFile.APIKeys,
	}
	deps := grpcserver.Deps{
		Unary:  []grpc.UnaryServerInterceptor{middleware.UnaryLoggingMetrics()},
		Stream: []grpc.StreamServerInterceptor{middleware.StreamLoggingMetrics()},
	}
	deps.Register = func(s *grpc.Server) {
		h := health.NewServer()
		h.SetServingStatus("resolvd.admin.v1.AdminService", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(s, h)
		reflection.Register(s)
		admin.Register(s, resolvdSrv)
	}

	gs, ln, err := grpcserver.New(cfg, deps)
	if err != nil {
		log.Fatalf("admin server: %v", err)
	}
	log.Printf("resolvd DNS listening on udp=%s tcp=%s", srvCfg.UDPAddr, srvCfg.TCPAddr)
	log.Printf("admin gRPC listening on %s", ln.Addr())
	if err := gs.Serve(ln); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
