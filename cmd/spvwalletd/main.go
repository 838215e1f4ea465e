// Command spvwalletd is the daemon of spec.md §6: connect to one
// peer, load or create a wallet file, choose an in-memory, LevelDB, or
// Postgres block store, and run start_block_chain_download.
//
// Grounded on the teacher's cmd/import/import.go: flag-driven
// configuration, a ctrl-c signal channel for graceful shutdown, and
// log.Printf/Fatalf throughout rather than a structured logger, since
// the teacher's own daemon entrypoint never reaches for one either.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/blkwallet/spv"
	"github.com/blkwallet/spv/chain"
	"github.com/blkwallet/spv/chainstore"
	"github.com/blkwallet/spv/chainstore/leveldb"
	"github.com/blkwallet/spv/chainstore/postgres"
	"github.com/blkwallet/spv/netpeer"
	"github.com/blkwallet/spv/rlimit"
	"github.com/blkwallet/spv/wallet"
)

func main() {
	peerAddr := flag.String("peer", "", "Remote node address (host:port)")
	walletPath := flag.String("wallet", "wallet.dat", "Path to the wallet file")
	storeKind := flag.String("store", "mem", "Block store: mem, leveldb, or postgres")
	storePath := flag.String("storepath", "chainstate", "Path/connection string for leveldb or postgres store")
	testNet := flag.Bool("testnet", false, "Use testnet parameters")
	tmout := flag.Duration("tmout", 30*time.Second, "Peer handshake timeout")

	flag.Parse()

	if *peerAddr == "" {
		log.Fatalf("-peer is required")
	}

	params := spv.ProdNet
	if *testNet {
		params = spv.TestNet
	}

	w, err := openWallet(*walletPath)
	if err != nil {
		log.Fatalf("opening wallet: %v", err)
	}

	store, err := openStore(*storeKind, *storePath, params)
	if err != nil {
		log.Fatalf("opening block store: %v", err)
	}

	bc := chain.New(store, params, w)

	p := netpeer.New(*peerAddr, *tmout, params, bc)
	if err := p.Start(); err != nil {
		log.Fatalf("connecting to %s: %v", *peerAddr, err)
	}
	log.Printf("connected to %s", *peerAddr)

	latch, err := p.StartBlockChainDownload()
	if err != nil {
		log.Fatalf("starting download: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Printf("interrupt, saving wallet and exiting...")
		if err := saveWallet(*walletPath, w); err != nil {
			log.Printf("error saving wallet: %v", err)
		}
		p.Disconnect()
		os.Exit(0)
	}()

	for latch.Count() > 0 {
		log.Printf("catching up, %d blocks remaining...", latch.Count())
		latch.Await(10 * time.Second)
	}
	log.Printf("caught up.")

	bal := w.GetBalance()
	log.Printf("balance: available=%d estimated=%d", bal.Available, bal.Estimated)

	if err := saveWallet(*walletPath, w); err != nil {
		log.Printf("error saving wallet: %v", err)
	}
}

func openWallet(path string) (*wallet.Wallet, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		log.Printf("no wallet at %s, creating a new one", path)
		w := wallet.New(wallet.NewKeyRing())
		k, err := wallet.NewKey("default")
		if err != nil {
			return nil, err
		}
		w.AddKey(k)
		return w, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := wallet.New(wallet.NewKeyRing())
	if err := w.Load(f); err != nil {
		return nil, err
	}
	return w, nil
}

func saveWallet(path string, w *wallet.Wallet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return w.Save(f)
}

func openStore(kind, path string, params *spv.NetParams) (chainstore.BlockStore, error) {
	switch kind {
	case "mem":
		return chainstore.NewMemStore(params.Genesis), nil
	case "leveldb":
		if err := rlimit.SetRLimit(1024); err != nil { // LevelDb opens many files!
			log.Printf("error setting rlimit: %v", err)
		}
		s, err := leveldb.Open(path)
		if err != nil {
			return nil, err
		}
		if err := s.Bootstrap(params.Genesis); err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.Open(path)
		if err != nil {
			return nil, err
		}
		if err := s.Bootstrap(params.Genesis); err != nil {
			return nil, err
		}
		return s, nil
	default:
		log.Fatalf("unknown -store kind %q", kind)
		return nil, nil
	}
}
