// Command simulator is a synthetic acquirer: it dials a running
// gateway's listener and drives a configurable rate of ATM/POS-style
// FISC requests at it, the way the teacher's producer generated
// synthetic interbank traffic for its own consumer to process.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/paynet/fep/internal/security"
	"github.com/paynet/fep/internal/wire"
)

type counters struct {
	sent      int64
	approved  int64
	declined  int64
	errors    int64
	startedAt time.Time
}

var stats counters

var terminals = []string{"ATM00001", "ATM00002", "ATM00003", "POS10001", "POS10002"}
var testPANs = []string{"4111111111111111", "4222222222222222", "4333333333333333"}

func main() {
	addr := flag.String("addr", "127.0.0.1:18583", "gateway acquirer listener address")
	tps := flag.Int("tps", 5, "target transactions per second")
	duration := flag.Duration("duration", 0, "run for this long, then stop (0 = run until interrupted)")
	flag.Parse()

	stats.startedAt = time.Now()

	schema := wire.NewFISCSchema()
	codec := wire.NewCodec()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("simulator: failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()
	log.Printf("simulator: connected to %s, target %d tps", *addr, *tps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *duration > 0 {
		var durCancel context.CancelFunc
		ctx, durCancel = context.WithTimeout(ctx, *duration)
		defer durCancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("simulator: shutdown signal received")
		cancel()
	}()

	driveTraffic(ctx, conn, schema, codec, *tps)

	elapsed := time.Since(stats.startedAt)
	log.Printf("simulator: stopped after %v. sent=%d approved=%d declined=%d errors=%d throughput=%.1f/s",
		elapsed,
		atomic.LoadInt64(&stats.sent),
		atomic.LoadInt64(&stats.approved),
		atomic.LoadInt64(&stats.declined),
		atomic.LoadInt64(&stats.errors),
		float64(atomic.LoadInt64(&stats.sent))/elapsed.Seconds(),
	)
}

// driveTraffic generates one request at the configured rate, writes
// its framed bytes, and reads back one framed reply before generating
// the next — the acquirer side of the gateway's listener is strictly
// request/response per connection, so traffic is paced rather than
// pipelined.
func driveTraffic(ctx context.Context, conn net.Conn, schema *wire.MessageSchema, codec *wire.Codec, tps int) {
	ticker := time.NewTicker(time.Second / time.Duration(tps))
	defer ticker.Stop()

	statTicker := time.NewTicker(10 * time.Second)
	defer statTicker.Stop()

	stan := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-statTicker.C:
			log.Printf("simulator: sent=%d approved=%d declined=%d errors=%d",
				atomic.LoadInt64(&stats.sent), atomic.LoadInt64(&stats.approved),
				atomic.LoadInt64(&stats.declined), atomic.LoadInt64(&stats.errors))
		case <-ticker.C:
			stan++
			msg, err := generateRequest(stan)
			if err != nil {
				log.Printf("simulator: failed to generate request: %v", err)
				atomic.AddInt64(&stats.errors, 1)
				continue
			}

			frame, err := codec.Encode(msg, schema)
			if err != nil {
				log.Printf("simulator: failed to encode request: %v", err)
				atomic.AddInt64(&stats.errors, 1)
				continue
			}

			if _, err := conn.Write(frame); err != nil {
				log.Printf("simulator: write failed: %v", err)
				atomic.AddInt64(&stats.errors, 1)
				return
			}

			reply, err := readFramedReply(conn, schema)
			if err != nil {
				if err != io.EOF {
					log.Printf("simulator: read failed: %v", err)
				}
				atomic.AddInt64(&stats.errors, 1)
				return
			}

			replyMsg, err := codec.Decode(reply, schema)
			if err != nil {
				log.Printf("simulator: failed to decode reply: %v", err)
				atomic.AddInt64(&stats.errors, 1)
				continue
			}

			atomic.AddInt64(&stats.sent, 1)
			if replyMsg.GetString(wire.F39ResponseCode) == "00" {
				atomic.AddInt64(&stats.approved, 1)
			} else {
				atomic.AddInt64(&stats.declined, 1)
			}
		}
	}
}

// generateRequest builds one synthetic 0200 withdrawal request,
// rotating through a small pool of terminals and test PANs and
// attaching a real ISO-0 PIN block so the gateway's SECURITY_CHECK
// stage has something to verify.
func generateRequest(stanSeed int) (*wire.Message, error) {
	terminal := terminals[rand.Intn(len(terminals))]
	pan := testPANs[rand.Intn(len(testPANs))]
	amount := 1000 + rand.Intn(500000)
	stan := fmt.Sprintf("%06d", stanSeed%1000000)
	rrn := fmt.Sprintf("%012d", time.Now().UnixNano()%1_000_000_000_000)

	pinBlock, err := security.CreatePinBlock(security.FormatISO0, "1234", pan)
	if err != nil {
		return nil, fmt.Errorf("generating PIN block: %w", err)
	}

	msg := wire.NewMessage("0200")
	msg.Set(wire.F2PAN, pan)
	msg.Set(wire.F3ProcessingCode, "011000")
	msg.Set(wire.F4Amount, fmt.Sprintf("%012d", amount))
	msg.Set(wire.F11STAN, stan)
	msg.Set(wire.F32AcquiringInst, "008")
	msg.Set(wire.F37RRN, rrn)
	msg.Set(wire.F41Terminal, terminal)
	msg.Set(wire.F49Currency, "901")
	msg.Set(wire.F52PINBlock, hex.EncodeToString(pinBlock.Data[:]))
	return msg, nil
}

func readFramedReply(conn net.Conn, schema *wire.MessageSchema) ([]byte, error) {
	if schema.Header == nil || !schema.Header.IncludeLength {
		return nil, fmt.Errorf("simulator: schema %s has no length-prefixed framing", schema.Name)
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
			return 0, fmt.Errorf("simulator: invalid BCD length prefix")
		}
		n = n*100 + int(hi)*10 + int(lo)
	}
	return n, nil
}
