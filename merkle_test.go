package spv

import "testing"

func Test_MerkleRoot_singleLeaf(t *testing.T) {
	h := DoubleSha256([]byte("one"))
	if root := MerkleRoot([]Hash{h}); root != h {
		t.Error("single-leaf root should equal the leaf itself")
	}
}

func Test_MerkleRoot_oddCardinalityDuplicatesLast(t *testing.T) {
	a := DoubleSha256([]byte("a"))
	b := DoubleSha256([]byte("b"))
	c := DoubleSha256([]byte("c"))

	got := MerkleRoot([]Hash{a, b, c})
	want := hashPair(hashPair(a, b), hashPair(c, c))
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func Test_MerkleRoot_empty(t *testing.T) {
	if root := MerkleRoot(nil); !root.IsZero() {
		t.Error("empty input should produce the zero hash")
	}
}

func Test_MerkleTree_apexMatchesRoot(t *testing.T) {
	a := DoubleSha256([]byte("a"))
	b := DoubleSha256([]byte("b"))
	c := DoubleSha256([]byte("c"))
	d := DoubleSha256([]byte("d"))

	tree := MerkleTree([]Hash{a, b, c, d})
	if tree[len(tree)-1] != MerkleRoot([]Hash{a, b, c, d}) {
		t.Error("tree apex should equal MerkleRoot")
	}
	if len(tree) != 4+2+1 {
		t.Errorf("len(tree) = %d, want 7", len(tree))
	}
}
