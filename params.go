package spv

import "math/big"

// NetID distinguishes the three parameter sets spec.md §6 requires.
type NetID int

const (
	ProdNetID NetID = iota
	TestNetID
	UnitTestsID
)

// NetParams fixes everything that varies by network: magic bytes,
// genesis header, proof-of-work limit, retarget interval/timespan,
// address prefix, default port, and seed peers.
type NetParams struct {
	ID   NetID
	Name string

	Magic uint32

	Genesis *BlockHeader

	// PowLimit is the easiest allowed target: the ceiling every
	// target must respect (§4.2 rule 2).
	PowLimit *big.Int

	// RetargetInterval is the number of blocks between difficulty
	// transitions ("interval" in §4.4); RetargetTimespan is the
	// target wall-clock duration of that many blocks.
	RetargetInterval int
	RetargetTimespan int64 // seconds

	AddrPrefix byte
	DefaultPort string
	SeedPeers   []string
}

var mainNetPowLimit = func() *big.Int {
	// 0x1d00ffff in compact form, the historical Bitcoin genesis target.
	limit := new(big.Int).SetUint64(0xffff)
	return limit.Lsh(limit, 208) // 26 bytes of headroom, exponent 0x1d
}()

// ProdNet mirrors the teacher's MainNetMagic, generalized into a full
// parameter record.
var ProdNet = &NetParams{
	ID:    ProdNetID,
	Name:  "prodnet",
	Magic: 0xd9b4bef9, // teacher's MainNetMagic

	Genesis: &BlockHeader{
		Version:    1,
		PrevHash:   Hash{},
		MerkleRoot: mustHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
		Time:       1231006505,
		Bits:       0x1d00ffff,
		Nonce:      2083236893,
	},

	PowLimit:         mainNetPowLimit,
	RetargetInterval: 2016,
	RetargetTimespan: 14 * 24 * 60 * 60,

	AddrPrefix:  0x00,
	DefaultPort: "8333",
	SeedPeers: []string{
		"seed.bitcoin.sipa.be",
		"dnsseed.bluematt.me",
		"dnsseed.bitcoin.dashjr.org",
	},
}

// TestNet mirrors the teacher's TestNetMagic.
var TestNet = &NetParams{
	ID:    TestNetID,
	Name:  "testnet",
	Magic: 0x0709110b, // teacher's TestNetMagic

	Genesis: &BlockHeader{
		Version:    1,
		PrevHash:   Hash{},
		MerkleRoot: mustHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
		Time:       1296688602,
		Bits:       0x1d00ffff,
		Nonce:      414098458,
	},

	PowLimit:         mainNetPowLimit,
	RetargetInterval: 2016,
	RetargetTimespan: 14 * 24 * 60 * 60,

	AddrPrefix:  0x6f,
	DefaultPort: "18333",
	SeedPeers: []string{
		"testnet-seed.bitcoin.jonasschnelli.ch",
	},
}

// UnitTests uses a trivially easy PowLimit and a short retarget
// interval/timespan, per the §8 "End-to-end scenarios" requirement
// that they all run under deterministic, fast-to-mine parameters.
var UnitTests = &NetParams{
	ID:    UnitTestsID,
	Name:  "unittests",
	Magic: 0xfeedbeef,

	Genesis: &BlockHeader{
		Version:    1,
		PrevHash:   Hash{},
		MerkleRoot: mustHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
		Time:       1296688602,
		Bits:       0x207fffff, // trivially easy
		Nonce:      0,
	},

	PowLimit:         new(big.Int).Lsh(big.NewInt(1), 255),
	RetargetInterval: 2,
	RetargetTimespan: 10 * 60,

	AddrPrefix:  0x6f,
	DefaultPort: "28333",
	SeedPeers:   nil,
}

func mustHash(s string) Hash {
	h, err := HashFromString(s)
	if err != nil {
		panic(err)
	}
	return h
}
