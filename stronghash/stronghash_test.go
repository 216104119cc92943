package stronghash

import "testing"

func TestSumDistinct(t *testing.T) {
	inputs := []string{"", "A", "AB", "ABC", "ABCD", "ABCDE", "ABCDEF"}
	seen := make(map[Hash]string, len(inputs))
	for _, in := range inputs {
		h := SumString(in)
		if prev, ok := seen[h]; ok {
			t.Fatalf("hash collision between %q and %q", prev, in)
		}
		seen[h] = in
	}
}

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("the quick brown fox"))
	b := Sum([]byte("the quick brown fox"))
	if a != b {
		t.Errorf("same input produced different hashes: %s vs %s", a, b)
	}
}

func TestFromWords(t *testing.T) {
	h := FromWords(1, 2, 3, 4)
	if h.Hi != 1<<32|2 {
		t.Errorf("Hi = %#x, want %#x", h.Hi, uint64(1<<32|2))
	}
	if h.Lo != 3<<32|4 {
		t.Errorf("Lo = %#x, want %#x", h.Lo, uint64(3<<32|4))
	}
	if FromWords(0, 0, 0, 7) == FromWords(0, 0, 7, 0) {
		t.Error("word position should matter")
	}
}

func TestProject32(t *testing.T) {
	h := FromWords(0xAAAA, 0xBBBB, 0xCCCC, 0xDDDD)
	if got := h.Project32(); got != 0xDDDD {
		t.Errorf("Project32 = %#x, want %#x", got, 0xDDDD)
	}
}

func TestIsZero(t *testing.T) {
	if !(Hash{}).IsZero() {
		t.Error("zero value should report IsZero")
	}
	if FromWords(0, 0, 0, 1).IsZero() {
		t.Error("non-zero hash reported IsZero")
	}
}

func TestString(t *testing.T) {
	h := FromWords(0, 1, 0, 2)
	const want = "00000000000000010000000000000002"
	if got := h.String(); got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}

func TestHasherMatchesSum(t *testing.T) {
	s := New()
	s.Write([]byte("glyph"))
	s.Write([]byte("-key"))
	if got, want := s.Sum(), Sum([]byte("glyph-key")); got != want {
		t.Errorf("incremental hash %s != one-shot hash %s", got, want)
	}
}

func TestHasherPrimitives(t *testing.T) {
	a := New()
	a.WriteUint32(0x01020304)
	a.WriteUint16(0x0506)
	a.WriteUint8(0x07)
	a.WriteUint64(0x08090a0b0c0d0e0f)

	b := New()
	b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f})
	if a.Sum() != b.Sum() {
		t.Error("primitive writes should be equivalent to their big-endian bytes")
	}
}

func TestHasherReset(t *testing.T) {
	s := New()
	s.Write([]byte("stale"))
	s.Reset()
	s.Write([]byte("fresh"))
	if got, want := s.Sum(), Sum([]byte("fresh")); got != want {
		t.Errorf("after Reset, got %s, want %s", got, want)
	}
}

func BenchmarkSum(b *testing.B) {
	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Sum(data)
	}
}
