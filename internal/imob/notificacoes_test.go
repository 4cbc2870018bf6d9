package imob

import (
	"context"
	"net/http"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Create validation (no DB calls, just input validation)
// ---------------------------------------------------------------------------

func TestNotificacaoCreate_ValidationErrors(t *testing.T) {
	svc := &NotificacaoService{db: nil} // will fail if DB is accessed

	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name string
		req  NotificacaoRequest
	}{
		{"empty_user", NotificacaoRequest{Titulo: "Aviso", Mensagem: "msg"}},
		{"empty_titulo", NotificacaoRequest{UserID: "u1", Mensagem: "msg"}},
		{"whitespace_titulo", NotificacaoRequest{UserID: "u1", Titulo: "   ", Mensagem: "msg"}},
		{"empty_mensagem", NotificacaoRequest{UserID: "u1", Titulo: "Aviso"}},
		{"bad_tipo", NotificacaoRequest{UserID: "u1", Titulo: "Aviso", Mensagem: "msg", Tipo: "urgente"}},
		{"scheduled_in_past", NotificacaoRequest{UserID: "u1", Titulo: "Aviso", Mensagem: "msg", ScheduledFor: &past}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status, err := svc.Create(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if status != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", status)
			}
		})
	}
}

func TestNotificacaoBroadcast_ValidationErrors(t *testing.T) {
	svc := &NotificacaoService{db: nil}

	tests := []struct {
		name             string
		titulo, mensagem string
		tipo             string
	}{
		{"empty_titulo", "", "msg", "sistema"},
		{"empty_mensagem", "Aviso", "", "sistema"},
		{"bad_tipo", "Aviso", "msg", "urgente"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status, err := svc.Broadcast(context.Background(), tt.titulo, tt.mensagem, tt.tipo)
			if err == nil {
				t.Fatal("expected error")
			}
			if status != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", status)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Tipo allow-list
// ---------------------------------------------------------------------------

func TestNotificacaoTipos(t *testing.T) {
	for _, tipo := range []string{"info", "alerta", "sistema", "cliente", "imovel"} {
		if !notificacaoTipos[tipo] {
			t.Errorf("expected tipo %q to be valid", tipo)
		}
	}
	if notificacaoTipos["urgente"] {
		t.Error("tipo 'urgente' should not be valid")
	}
}
