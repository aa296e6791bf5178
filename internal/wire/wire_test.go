package wire

import (
	"reflect"
	"sort"
	"testing"
)

func TestEncodeDecodeGetServersResponseRoundTrip(t *testing.T) {
	endpoints := []Endpoint{
		{IP: "10.0.0.1", Port: 27960},
		{IP: "10.0.0.2", Port: 27961},
		{IP: "1.2.3.4", Port: 65535},
	}

	encoded := EncodeGetServersResponse(endpoints)
	decoded := ParseGetServersResponse(encoded)

	sortEndpoints(endpoints)
	sortEndpoints(decoded)

	if !reflect.DeepEqual(endpoints, decoded) {
		t.Fatalf("round trip mismatch: got %v, want %v", decoded, endpoints)
	}
}

func sortEndpoints(eps []Endpoint) {
	sort.Slice(eps, func(i, j int) bool {
		if eps[i].IP != eps[j].IP {
			return eps[i].IP < eps[j].IP
		}
		return eps[i].Port < eps[j].Port
	})
}

// TestGetServersReplyFraming pins the exact byte layout from the
// end-to-end scenario in spec.md §8: two endpoints, fresh, reply body
// bytes (after prefix + literal) match a fixed hex sequence.
func TestGetServersReplyFraming(t *testing.T) {
	endpoints := []Endpoint{
		{IP: "10.0.0.1", Port: 27960},
		{IP: "10.0.0.2", Port: 27961},
	}
	got := EncodeGetServersResponse(endpoints)
	body := got[getServersResponseHeaderSz:]

	want := []byte{
		0x0A, 0x00, 0x00, 0x01, 0x6D, 0x38, // 10.0.0.1 : 27960
		0x0A, 0x00, 0x00, 0x02, 0x6D, 0x39, // 10.0.0.2 : 27961
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	if !reflect.DeepEqual(body, want) {
		t.Fatalf("reply body = % X, want % X", body, want)
	}
}

func TestParseGetServersResponseEmpty(t *testing.T) {
	payload := append(append([]byte{}, Prefix...), []byte(getServersResponseLiteral)...)
	got := ParseGetServersResponse(payload)
	if len(got) != 0 {
		t.Fatalf("expected no endpoints, got %v", got)
	}
}

func TestParseGetServersResponseToleratesPartialTrailingSlot(t *testing.T) {
	payload := append(append([]byte{}, Prefix...), []byte(getServersResponseLiteral)...)
	payload = append(payload, 10, 0, 0, 1, 0x6D, 0x38)
	payload = append(payload, Prefix...) // trailing sentinel, short final "slot"

	got := ParseGetServersResponse(payload)
	want := []Endpoint{{IP: "10.0.0.1", Port: 27960}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseInfoResponse(t *testing.T) {
	payload := []byte("\xff\xff\xff\xffinfoResponse\n\\hostname\\Foo\\protocol\\84\\clients\\3\\sv_maxclients\\20\\game\\etmain\\mapname\\oasis")

	info, ok := ParseInfoResponse(payload)
	if !ok {
		t.Fatal("expected infoResponse to be found")
	}

	probe := ExtractProbeInfo(info)
	want := ProbeInfo{
		Name:       "Foo",
		Version:    versionSynthesisFallback,
		Mod:        "etmain",
		Map:        "oasis",
		Players:    3,
		MaxPlayers: 20,
	}
	if probe != want {
		t.Fatalf("got %+v, want %+v", probe, want)
	}
}

func TestParseInfoResponseMissing(t *testing.T) {
	_, ok := ParseInfoResponse([]byte("\xff\xff\xff\xffprint\nnot an info response"))
	if ok {
		t.Fatal("expected no infoResponse marker to be found")
	}
}

func TestParseInfoResponseDropsTrailingLoneKey(t *testing.T) {
	payload := []byte("infoResponse\n\\hostname\\Foo\\trailingkey")
	info, ok := ParseInfoResponse(payload)
	if !ok {
		t.Fatal("expected infoResponse to be found")
	}
	if info["hostname"] != "Foo" {
		t.Fatalf("hostname = %q, want Foo", info["hostname"])
	}
	if _, present := info["trailingkey"]; present {
		t.Fatalf("trailing lone key should have been dropped, got %v", info)
	}
}

func TestExtractProbeInfoBoundaries(t *testing.T) {
	cases := []struct {
		name string
		info InfoResponse
		want ProbeInfo
	}{
		{
			name: "missing clients and sv_maxclients default to zero",
			info: InfoResponse{"hostname": "Bar", "protocol": "84"},
			want: ProbeInfo{Name: "Bar", Version: versionSynthesisFallback, Mod: "Unknown", Map: "Unknown"},
		},
		{
			name: "missing version, protocol 84 synthesizes ET version string",
			info: InfoResponse{"protocol": "84"},
			want: ProbeInfo{Name: "Unknown", Version: versionSynthesisFallback, Mod: "Unknown", Map: "Unknown"},
		},
		{
			name: "missing version, other protocol falls back to Unknown",
			info: InfoResponse{"protocol": "71"},
			want: ProbeInfo{Name: "Unknown", Version: "Unknown", Mod: "Unknown", Map: "Unknown"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractProbeInfo(tc.info)
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestClassifyInbound(t *testing.T) {
	cases := []struct {
		payload []byte
		want    string
	}{
		{append(append([]byte{}, Prefix...), []byte("heartbeat ET\n")...), "heartbeat"},
		{append(append([]byte{}, Prefix...), []byte("getservers 84 empty full")...), "getservers"},
		{append(append([]byte{}, Prefix...), []byte("print\nsomething else")...), "unknown"},
	}
	for _, tc := range cases {
		_, kind := ClassifyInbound(tc.payload)
		if kind != tc.want {
			t.Errorf("ClassifyInbound(%q) kind = %q, want %q", tc.payload, kind, tc.want)
		}
	}
}
