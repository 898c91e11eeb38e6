package checksum

import "testing"

func TestSum_KnownVector(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestSumBLAKE3_KnownVector(t *testing.T) {
	got := SumBLAKE3([]byte(""))
	want := "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
	if got != want {
		t.Errorf("SumBLAKE3 = %s, want %s", got, want)
	}
}

func TestFor(t *testing.T) {
	for _, alg := range []Algorithm{"", SHA256, BLAKE3} {
		h, err := For(alg)
		if err != nil {
			t.Fatalf("For(%q): %v", alg, err)
		}
		if len(h([]byte("x"))) != 64 {
			t.Errorf("For(%q) digest length != 64", alg)
		}
	}
	if _, err := For("md5"); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestFor_AlgorithmsDiffer(t *testing.T) {
	a, _ := For(SHA256)
	b, _ := For(BLAKE3)
	if a([]byte("same")) == b([]byte("same")) {
		t.Error("sha256 and blake3 digests should differ")
	}
}
