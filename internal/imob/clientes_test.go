package imob

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// ValidateCPF
// ---------------------------------------------------------------------------

func TestValidateCPF(t *testing.T) {
	tests := []struct {
		name  string
		cpf   string
		valid bool
	}{
		{"valid_bare", "52998224725", true},
		{"valid_formatted", "529.982.247-25", true},
		{"valid_other", "11144477735", true},
		{"wrong_first_check_digit", "52998224735", false},
		{"wrong_second_check_digit", "52998224726", false},
		{"all_same_digits", "11111111111", false},
		{"all_zeros", "00000000000", false},
		{"too_short", "5299822472", false},
		{"too_long", "529982247251", false},
		{"empty", "", false},
		{"letters", "abcdefghijk", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateCPF(tt.cpf); got != tt.valid {
				t.Errorf("ValidateCPF(%q) = %v, want %v", tt.cpf, got, tt.valid)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ValidateClienteRequest
// ---------------------------------------------------------------------------

func TestValidateClienteRequest_Valid(t *testing.T) {
	req := ClienteRequest{
		Nome:     "  Maria Silva  ",
		Email:    strPtr("Maria@Example.COM"),
		Telefone: strPtr("(18) 99999-1234"),
		CPF:      strPtr("529.982.247-25"),
	}

	if err := ValidateClienteRequest(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Nome != "Maria Silva" {
		t.Errorf("nome not trimmed: %q", req.Nome)
	}
	if *req.Email != "maria@example.com" {
		t.Errorf("email not normalized: %q", *req.Email)
	}
	if *req.CPF != "52998224725" {
		t.Errorf("CPF not stored as bare digits: %q", *req.CPF)
	}
}

func TestValidateClienteRequest_OptionalFieldsEmpty(t *testing.T) {
	req := ClienteRequest{Nome: "João"}
	if err := ValidateClienteRequest(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateClienteRequest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		req     ClienteRequest
		wantErr string
	}{
		{"empty_nome", ClienteRequest{Nome: "   "}, "nome"},
		{"bad_email", ClienteRequest{Nome: "João", Email: strPtr("not-an-email")}, "email"},
		{"bad_telefone", ClienteRequest{Nome: "João", Telefone: strPtr("abc")}, "telefone"},
		{"bad_cpf", ClienteRequest{Nome: "João", CPF: strPtr("12345678900")}, "CPF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClienteRequest(&tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
