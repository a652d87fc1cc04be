package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/sealedvote/tally/crypto/ecc/curves"
	"github.com/sealedvote/tally/ledger"
	"github.com/sealedvote/tally/oracle"
	"github.com/sealedvote/tally/service"
	"github.com/sealedvote/tally/storage"
)

func main() {
	dataDir := flag.String("datadir", filepath.Join(os.TempDir(), "sealedvote"), "data directory for the key-value store")
	host := flag.String("host", "0.0.0.0", "host to bind the API server to")
	port := flag.Int("port", 8080, "port to bind the API server to")
	admin := flag.String("admin", "", "address allowed to create proposals (hex, required)")
	dbType := flag.String("dbtype", db.TypePebble, "key-value store type")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	curve := flag.String("curve", curves.CurveTypeBabyJubJub, "elliptic curve for vote ciphertexts")
	scanInterval := flag.Duration("scaninterval", 10*time.Second, "interval between tally scheduler scans")
	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	if *admin == "" || !common.IsHexAddress(*admin) {
		log.Fatalf("a valid -admin address is required")
	}

	database, err := metadb.New(*dbType, *dataDir)
	if err != nil {
		log.Fatal(err)
	}
	stg := storage.New(database)
	defer stg.Close()

	// The local oracle holds the decryption key; the ledger only ever sees
	// its public key and address.
	orc, err := oracle.NewLocal(*curve, nil)
	if err != nil {
		log.Fatal(err)
	}
	ldg, err := ledger.New(ledger.Config{
		Storage:       stg,
		Decryptor:     orc,
		EncryptionKey: orc.PublicKey(),
		OracleAddress: orc.Address(),
		CreateAuth:    ledger.AdminOnly(common.HexToAddress(*admin)),
	})
	if err != nil {
		log.Fatal(err)
	}
	orc.SetSink(ldg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orc.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer orc.Stop()

	scheduler := service.NewTallyScheduler(ldg, *scanInterval)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer scheduler.Stop()

	apiService := service.NewAPI(ldg, *host, *port)
	if err := apiService.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer apiService.Stop()

	log.Infow("sealedvote tally service started",
		"host", *host, "port", *port,
		"curve", *curve, "oracle", orc.Address().String(),
		"admin", *admin)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
}
