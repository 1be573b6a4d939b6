// Command gateway runs the Financial Exchange Processor: it accepts
// framed FISC requests from an acquiring channel, drives them through
// the transaction pipeline, which dispatches them upstream over a
// dual-channel FISC connection, and writes the approved/declined outcome
// back to the acquirer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/paynet/fep/internal/audit"
	"github.com/paynet/fep/internal/batch"
	"github.com/paynet/fep/internal/config"
	"github.com/paynet/fep/internal/connmgr"
	"github.com/paynet/fep/internal/dedup"
	"github.com/paynet/fep/internal/gateway"
	"github.com/paynet/fep/internal/logging"
	"github.com/paynet/fep/internal/metrics"
	"github.com/paynet/fep/internal/opsfeed"
	"github.com/paynet/fep/internal/pipeline"
	"github.com/paynet/fep/internal/processors"
	"github.com/paynet/fep/internal/repository"
	"github.com/paynet/fep/internal/retry"
	"github.com/paynet/fep/internal/router"
	"github.com/paynet/fep/internal/txn"
	"github.com/paynet/fep/internal/wire"
)

func main() {
	configPath := flag.String("config", "", "path to gateway.yaml (optional; defaults apply if absent)")
	upstreamChannel := flag.String("upstream-channel", "interbank", "configured channel name to dial upstream for FISC dispatch")
	logLevel := flag.String("log-level", "info", "debug, info, warn, error")
	dashboardAddr := flag.String("dashboard-addr", ":18584", "address for the operations dashboard websocket feed")
	kafkaBrokers := flag.String("kafka-brokers", "", "comma-separated Kafka brokers for the batch intake topic (disabled if empty)")
	kafkaTopic := flag.String("kafka-topic", "fep-batch-intake", "Kafka topic batch submissions arrive on")
	flag.Parse()

	log, err := logging.New(logging.Config{Level: *logLevel, JSON: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gateway: logger init: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("loading configuration", zap.Error(err))
	}

	schema := wire.NewFISCSchema()

	var upstream *connmgr.Connection
	if ccfg, cerr := cfg.ConnectionConfig(*upstreamChannel); cerr == nil {
		ccfg.Schema = schema
		upstream = connmgr.NewConnection(ccfg, logging.Component(log, "connmgr"))
		if cfg.Connection.AutoConnect {
			if err := upstream.Connect(context.Background()); err != nil {
				log.Warn("upstream connect failed, continuing disconnected", zap.Error(err))
			} else if cfg.Connection.AutoSignOn {
				if err := upstream.SignOn(context.Background()); err != nil {
					log.Warn("upstream sign-on failed", zap.Error(err))
				}
			}
		}
	} else {
		log.Warn("no upstream channel configured, processors will fail closed", zap.String("channel", *upstreamChannel), zap.Error(cerr))
	}

	deps := buildDeps(cfg, upstream, log)
	pl := deps.BuildPipeline()

	hub := opsfeed.NewHub(logging.Component(log, "opsfeed"))
	pl.AddListener(pipeline.NewFuncListener(hub.Broadcast))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	var intake *batch.IntakeConsumer
	if *kafkaBrokers != "" {
		batchProcessor := batch.NewProcessor(deps.Processors, &batch.BroadcastListener{Broadcast: hub.Broadcast})
		intake = batch.NewIntakeConsumer(kafka.ReaderConfig{
			Brokers: strings.Split(*kafkaBrokers, ","),
			Topic:   *kafkaTopic,
			GroupID: "fep-gateway",
		}, batchProcessor, logging.Component(log, "batch-intake"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			intake.Run(ctx)
		}()
	}

	dashboardSrv := &http.Server{Addr: *dashboardAddr, Handler: dashboardMux(hub)}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("dashboard feed started", zap.String("address", *dashboardAddr))
		if err := dashboardSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("dashboard server failed", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		serveAcquirer(ctx, cfg, schema, pl, logging.Component(log, "listener"))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logMetricsPeriodically(ctx, deps.Metrics, logging.Component(log, "metrics"))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Connection.GracefulShutdownTimeoutMs)*time.Millisecond)
	defer shutdownCancel()
	if err := dashboardSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("dashboard server shutdown", zap.Error(err))
	}
	if intake != nil {
		if err := intake.Close(); err != nil {
			log.Warn("batch intake close", zap.Error(err))
		}
	}
	if upstream != nil {
		if err := upstream.Close(); err != nil {
			log.Warn("upstream close", zap.Error(err))
		}
	}
	wg.Wait()
	log.Info("gateway stopped")
}

// dashboardMux exposes the dashboard websocket upgrade endpoint and a
// plain-text health probe on the same listener.
func dashboardMux(hub *opsfeed.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// buildDeps wires every internal package into one gateway.Deps, the way
// a production deployment would at startup.
func buildDeps(cfg *config.Config, upstream *connmgr.Connection, log *zap.Logger) *gateway.Deps {
	var sender processors.Sender = upstream
	if upstream == nil {
		sender = unavailableSender{}
	}

	byType := map[txn.Type]processors.Processor{
		txn.TypeWithdrawal:     processors.NewWithdrawalProcessor(sender),
		txn.TypeDeposit:        processors.NewDepositProcessor(sender),
		txn.TypeBalanceInquiry: processors.NewBalanceProcessor(sender),
		txn.TypeTransfer:       processors.NewTransferProcessor(sender),
		txn.TypeBillPayment:    processors.NewBillPaymentProcessor(sender),
		txn.TypePurchase:       processors.NewPurchaseProcessor(sender),
	}

	store := dedup.NewStore(cfg.DedupRetentionWindow())

	r := router.New()
	r.AddRule(&router.Rule{
		Name:        "bill-payment",
		Priority:    10,
		Active:      true,
		Types:       map[txn.Type]bool{txn.TypeBillPayment: true},
		Destination: router.DestFISCBillPayment,
		Timeout:     10 * time.Second,
	})
	r.SetDefault(router.DestFISCInterbank, 10*time.Second)

	repo := repository.NewInMemory()
	auditLog := audit.New(repo, logging.Component(log, "audit"))

	retryPolicy, err := cfg.RetryPolicy("interbank")
	if err != nil {
		retryPolicy = retry.FinancialTransactionPolicy()
	}

	return &gateway.Deps{
		Dedup:       store,
		Router:      r,
		Processors:  byType,
		Reversal:    processors.NewReversalProcessor(sender, store),
		Audit:       auditLog,
		Repo:        repo,
		Metrics:     metrics.NewRegistry(),
		Log:         log,
		RetryPolicy: retryPolicy,
	}
}

// unavailableSender fails closed when no upstream connection could be
// established at startup, rather than nil-dereferencing.
type unavailableSender struct{}

func (unavailableSender) Send(_ context.Context, _ *wire.Message, _ time.Duration) (*wire.Message, error) {
	return nil, fmt.Errorf("gateway: no upstream connection available")
}

// serveAcquirer listens on cfg.Listen.Address and hands each accepted
// connection to handleAcquirerConn. cfg.Listen.Channel names the
// channel (ATM, POS, ...) tagged onto every request translated from
// that listener, since the FISC wire format itself carries no channel
// indicator field.
func serveAcquirer(ctx context.Context, cfg *config.Config, schema *wire.MessageSchema, pl *pipeline.Pipeline, log *zap.Logger) {
	ln, err := net.Listen("tcp", cfg.Listen.Address)
	if err != nil {
		log.Error("acquirer listener failed to start", zap.String("address", cfg.Listen.Address), zap.Error(err))
		return
	}
	log.Info("acquirer listener started", zap.String("address", cfg.Listen.Address), zap.String("channel", cfg.Listen.Channel))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	codec := wire.NewCodec()
	channel := txn.Channel(cfg.Listen.Channel)

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			default:
				log.Warn("accept failed", zap.Error(err))
				continue
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleAcquirerConn(conn, schema, codec, channel, pl, log)
		}()
	}
}

// handleAcquirerConn reads one BCD length-prefixed FISC message at a
// time off conn, translates it into a business request, drives it
// through the pipeline, and writes the encoded response back — the
// acquirer side of the same framing scheme internal/connmgr uses for
// the upstream leg.
func handleAcquirerConn(conn net.Conn, schema *wire.MessageSchema, codec *wire.Codec, channel txn.Channel, pl *pipeline.Pipeline, log *zap.Logger) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	for {
		frame, err := readFramedRequest(conn, schema)
		if err != nil {
			if err != io.EOF {
				log.Warn("acquirer connection read failed", zap.String("remote", remote), zap.Error(err))
			}
			return
		}

		msg, err := codec.Decode(frame, schema)
		if err != nil {
			log.Warn("malformed inbound frame", zap.String("remote", remote), zap.Error(err))
			continue
		}

		req, err := gateway.RequestFromWire(msg, channel)
		if err != nil {
			log.Warn("unmappable inbound request", zap.String("remote", remote), zap.Error(err))
			continue
		}

		pctx := pl.Run(req)

		reply := wire.NewMessage("0210")
		reply.Set(wire.F11STAN, req.STAN)
		reply.Set(wire.F37RRN, req.RRN)
		if pctx.Response != nil {
			reply.Set(wire.F39ResponseCode, pctx.Response.ResponseCode)
			if pctx.Response.AuthCode != "" {
				reply.Set(wire.F38AuthCode, pctx.Response.AuthCode)
			}
		} else {
			reply.Set(wire.F39ResponseCode, txn.CodeSystemMalfunction)
		}

		out, err := codec.Encode(reply, schema)
		if err != nil {
			log.Error("failed to encode response frame", zap.String("remote", remote), zap.Error(err))
			return
		}
		if _, err := conn.Write(out); err != nil {
			log.Warn("failed to write response frame", zap.String("remote", remote), zap.Error(err))
			return
		}
	}
}

// readFramedRequest reads one complete wire message off conn using the
// schema's BCD length prefix to know how many bytes follow. Reimplemented
// locally because connmgr's equivalent is unexported; the framing it
// describes is identical on both legs of the gateway.
func readFramedRequest(conn net.Conn, schema *wire.MessageSchema) ([]byte, error) {
	if schema.Header == nil || !schema.Header.IncludeLength {
		return nil, fmt.Errorf("gateway: schema %s has no length-prefixed framing", schema.Name)
	}

	lenBytes := make([]byte, schema.Header.LengthBytes)
	if _, err := io.ReadFull(conn, lenBytes); err != nil {
		return nil, err
	}
	bodyLen, err := bcdToInt(lenBytes)
	if err != nil {
		return nil, err
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	return append(lenBytes, body...), nil
}

func bcdToInt(data []byte) (int, error) {
	n := 0
	for _, b := range data {
		hi, lo := b>>4, b&0x0F
		if hi > 9 || lo > 9 {
			return 0, fmt.Errorf("gateway: invalid BCD length prefix")
		}
		n = n*100 + int(hi)*10 + int(lo)
	}
	return n, nil
}

// logMetricsPeriodically logs the registry's batch, reversal and
// duplicate counters from a Snapshot on a fixed interval, the way the
// teacher's consumer loop periodically logs its own running counters.
func logMetricsPeriodically(ctx context.Context, reg *metrics.Registry, log *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := reg.Snapshot()
			log.Info("metrics snapshot",
				zap.Int64("batchesStarted", snap.BatchesStarted),
				zap.Int64("batchesCompleted", snap.BatchesCompleted),
				zap.Int64("batchesFailed", snap.BatchesFailed),
				zap.Int64("reversalsIssued", snap.ReversalsIssued),
				zap.Int64("duplicatesSeen", snap.DuplicatesSeen),
			)
		}
	}
}
