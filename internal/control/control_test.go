package control

import "testing"

func TestParseGetSources(t *testing.T) {
	cmd, ok := Parse("GET_SOURCES")
	if !ok || cmd.Effect != EffectGetSources {
		t.Fatalf("got %+v, %v", cmd, ok)
	}
}

func TestParseSetSource(t *testing.T) {
	cmd, ok := Parse(`SET_SOURCE:alsa_output.pci-0000_00_1f.3.analog-stereo.monitor`)
	if !ok || cmd.Effect != EffectSetSource {
		t.Fatalf("got %+v, %v", cmd, ok)
	}
	if cmd.Source != "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor" {
		t.Fatalf("source = %q", cmd.Source)
	}
}

func TestParseSetSourceUnescapesQuotes(t *testing.T) {
	cmd, ok := Parse(`SET_SOURCE:weird\"name`)
	if !ok {
		t.Fatal("expected ok")
	}
	if cmd.Source != `weird"name` {
		t.Fatalf("source = %q", cmd.Source)
	}
}

func TestParseSetFPSValid(t *testing.T) {
	for _, n := range []int{24, 30, 60} {
		cmd, ok := Parse("SET_FPS:" + itoa(n))
		if !ok || cmd.Effect != EffectSetFPS || cmd.FPS != n {
			t.Fatalf("n=%d got %+v, %v", n, cmd, ok)
		}
	}
}

func TestParseSetFPSInvalidIsNoOp(t *testing.T) {
	_, ok := Parse("SET_FPS:50")
	if ok {
		t.Fatal("expected rejection of out-of-set fps")
	}
}

func TestParseSetBarCountInvalid(t *testing.T) {
	_, ok := Parse("SET_BAR_COUNT:50")
	if ok {
		t.Fatal("expected rejection of out-of-set bar count")
	}
}

func TestParseSetBarCountIdempotentShape(t *testing.T) {
	c1, ok1 := Parse("SET_BAR_COUNT:72")
	c2, ok2 := Parse("SET_BAR_COUNT:72")
	if !ok1 || !ok2 || c1 != c2 {
		t.Fatalf("expected identical parses, got %+v vs %+v", c1, c2)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	_, ok := Parse("PLAY_MUSIC")
	if ok {
		t.Fatal("expected rejection of unknown command")
	}
}

func TestSourcesExactJSON(t *testing.T) {
	got := string(Sources([]SourceDescriptor{
		{Name: "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor", Desc: "Built-in Audio"},
	}))
	want := `{"sources":[{"name":"alsa_output.pci-0000_00_1f.3.analog-stereo.monitor","desc":"Built-in Audio"}]}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBarCountChangedJSON(t *testing.T) {
	got := string(BarCountChanged(16))
	want := `{"barCountChanged":16}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSourceErrorEscapesQuotes(t *testing.T) {
	got := string(SourceError(`device "busy"`))
	want := `{"sourceError":"device \"busy\""}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return string(buf)
}
