package imob

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// ValidateCidadeRequest
// ---------------------------------------------------------------------------

func TestValidateCidadeRequest_Valid(t *testing.T) {
	req := CidadeRequest{Nome: "  Regente Feijó  ", UF: "sp"}
	if err := ValidateCidadeRequest(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Nome != "Regente Feijó" {
		t.Errorf("nome not trimmed: %q", req.Nome)
	}
	if req.UF != "SP" {
		t.Errorf("UF not uppercased: %q", req.UF)
	}
}

func TestValidateCidadeRequest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		req     CidadeRequest
		wantErr string
	}{
		{"empty_nome", CidadeRequest{Nome: "  ", UF: "SP"}, "nome"},
		{"empty_uf", CidadeRequest{Nome: "Presidente Prudente", UF: ""}, "UF"},
		{"bad_uf", CidadeRequest{Nome: "Presidente Prudente", UF: "XX"}, "UF"},
		{"uf_too_long", CidadeRequest{Nome: "Presidente Prudente", UF: "SPP"}, "UF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCidadeRequest(&tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidUFs_CountAndSamples(t *testing.T) {
	if len(validUFs) != 27 {
		t.Fatalf("expected 27 UFs, got %d", len(validUFs))
	}
	for _, uf := range []string{"SP", "RJ", "MG", "RS", "DF", "TO"} {
		if !validUFs[uf] {
			t.Errorf("expected UF %q to be valid", uf)
		}
	}
}
