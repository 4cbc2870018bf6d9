package imob

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// ValidateImovelRequest
// ---------------------------------------------------------------------------

func floatPtr(v float64) *float64 { return &v }

func TestValidateImovelRequest_Valid(t *testing.T) {
	tests := []struct {
		name string
		req  ImovelRequest
	}{
		{
			"venda",
			ImovelRequest{Nome: "Casa no centro", Tipo: "casa", Finalidade: "venda", ValorVenda: floatPtr(350000)},
		},
		{
			"aluguel",
			ImovelRequest{Nome: "Apartamento", Tipo: "apartamento", Finalidade: "aluguel", ValorAluguel: floatPtr(1500)},
		},
		{
			"ambos",
			ImovelRequest{Nome: "Chácara", Tipo: "chacara", Finalidade: "ambos", ValorVenda: floatPtr(500000), ValorAluguel: floatPtr(3000)},
		},
		{
			"terreno_sem_quartos",
			ImovelRequest{Nome: "Terreno comercial", Tipo: "terreno", Finalidade: "venda", ValorVenda: floatPtr(120000), AreaTotal: floatPtr(450)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateImovelRequest(tt.req); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateImovelRequest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		req     ImovelRequest
		wantErr string
	}{
		{
			"empty_nome",
			ImovelRequest{Nome: "  ", Tipo: "casa", Finalidade: "venda", ValorVenda: floatPtr(100)},
			"nome",
		},
		{
			"bad_tipo",
			ImovelRequest{Nome: "Casa", Tipo: "castelo", Finalidade: "venda", ValorVenda: floatPtr(100)},
			"tipo inválido",
		},
		{
			"bad_finalidade",
			ImovelRequest{Nome: "Casa", Tipo: "casa", Finalidade: "leilao"},
			"finalidade inválida",
		},
		{
			"venda_sem_valor",
			ImovelRequest{Nome: "Casa", Tipo: "casa", Finalidade: "venda"},
			"valor_venda",
		},
		{
			"aluguel_sem_valor",
			ImovelRequest{Nome: "Casa", Tipo: "casa", Finalidade: "aluguel"},
			"valor_aluguel",
		},
		{
			"ambos_faltando_aluguel",
			ImovelRequest{Nome: "Casa", Tipo: "casa", Finalidade: "ambos", ValorVenda: floatPtr(100)},
			"obrigatórios",
		},
		{
			"valor_negativo",
			ImovelRequest{Nome: "Casa", Tipo: "casa", Finalidade: "venda", ValorVenda: floatPtr(-1)},
			"negativo",
		},
		{
			"quartos_negativos",
			ImovelRequest{Nome: "Casa", Tipo: "casa", Finalidade: "venda", ValorVenda: floatPtr(100), Quartos: -1},
			"negativos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImovelRequest(tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Sort column allow-list
// ---------------------------------------------------------------------------

func TestImovelSortColumns_KnownColumns(t *testing.T) {
	for _, col := range []string{"created_at", "updated_at", "nome", "valor", "quartos", "area_total"} {
		if _, ok := imovelSortColumns[col]; !ok {
			t.Errorf("expected sort column %q to be allowed", col)
		}
	}
}

func TestImovelSortColumns_RejectsUnknown(t *testing.T) {
	// Anything not in the map must not reach ORDER BY
	for _, col := range []string{"", "id; DROP TABLE imoveis", "password_hash", "valor_venda"} {
		if _, ok := imovelSortColumns[col]; ok {
			t.Errorf("sort column %q should not be allowed", col)
		}
	}
}
