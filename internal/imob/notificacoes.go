package imob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var notificacaoTipos = map[string]bool{
	"info": true, "alerta": true, "sistema": true, "cliente": true, "imovel": true,
}

type NotificacaoService struct {
	db *pgxpool.Pool
}

func NewNotificacaoService(db *pgxpool.Pool) *NotificacaoService {
	return &NotificacaoService{db: db}
}

type Notificacao struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Titulo       string     `json:"titulo"`
	Mensagem     string     `json:"mensagem"`
	Tipo         string     `json:"tipo"`
	Lida         bool       `json:"lida"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type NotificacaoRequest struct {
	UserID       string     `json:"user_id"`
	Titulo       string     `json:"titulo"`
	Mensagem     string     `json:"mensagem"`
	Tipo         string     `json:"tipo"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

type NotificacaoListResult struct {
	Notificacoes []Notificacao `json:"notificacoes"`
	Total        int           `json:"total"`
	Unread       int           `json:"unread"`
	Page         int           `json:"page"`
	PerPage      int           `json:"per_page"`
}

// List returns delivered notifications for a user, newest first. lida filters
// by read state when set; tipo filters by kind.
func (s *NotificacaoService) List(ctx context.Context, userID string, lida *bool, tipo string, page, perPage int) (*NotificacaoListResult, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	// Scheduled-but-undelivered rows stay hidden
	where := []string{"user_id = $1", "(scheduled_for IS NULL OR delivered_at IS NOT NULL)"}
	args := []interface{}{userID}
	i := 2

	if lida != nil {
		where = append(where, fmt.Sprintf("lida = $%d", i))
		args = append(args, *lida)
		i++
	}
	if tipo != "" {
		where = append(where, fmt.Sprintf("tipo = $%d", i))
		args = append(args, tipo)
		i++
	}

	cond := strings.Join(where, " AND ")

	var total int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notificacoes WHERE `+cond, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count notificacoes: %w", err)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT id, user_id, titulo, mensagem, tipo, lida, scheduled_for, delivered_at, created_at
		FROM notificacoes WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, cond, i, i+1), args...)
	if err != nil {
		return nil, fmt.Errorf("list notificacoes: %w", err)
	}
	defer rows.Close()

	notificacoes := []Notificacao{}
	for rows.Next() {
		var n Notificacao
		if err := rows.Scan(&n.ID, &n.UserID, &n.Titulo, &n.Mensagem, &n.Tipo, &n.Lida, &n.ScheduledFor, &n.DeliveredAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notificacao: %w", err)
		}
		notificacoes = append(notificacoes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notificacoes: %w", err)
	}

	return &NotificacaoListResult{
		Notificacoes: notificacoes,
		Total:        total,
		Unread:       unread,
		Page:         page,
		PerPage:      perPage,
	}, nil
}

// UnreadCount returns the number of delivered unread notifications.
func (s *NotificacaoService) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notificacoes
		WHERE user_id = $1 AND NOT lida AND (scheduled_for IS NULL OR delivered_at IS NOT NULL)
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// Create inserts a notification. A future scheduled_for keeps it hidden until
// the scheduler delivers it; immediate notifications are delivered at once.
func (s *NotificacaoService) Create(ctx context.Context, req NotificacaoRequest) (*Notificacao, int, error) {
	req.Titulo = strings.TrimSpace(req.Titulo)
	req.Mensagem = strings.TrimSpace(req.Mensagem)
	if req.UserID == "" || req.Titulo == "" || req.Mensagem == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("user_id, titulo e mensagem são obrigatórios")
	}
	if req.Tipo == "" {
		req.Tipo = "info"
	}
	if !notificacaoTipos[req.Tipo] {
		return nil, http.StatusBadRequest, fmt.Errorf("tipo inválido: %q", req.Tipo)
	}
	if req.ScheduledFor != nil && req.ScheduledFor.Before(time.Now()) {
		return nil, http.StatusBadRequest, fmt.Errorf("scheduled_for deve estar no futuro")
	}

	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, req.UserID).Scan(&exists)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, http.StatusBadRequest, fmt.Errorf("usuário não encontrado")
	}

	var deliveredAt *time.Time
	if req.ScheduledFor == nil {
		now := time.Now()
		deliveredAt = &now
	}

	var n Notificacao
	err = s.db.QueryRow(ctx, `
		INSERT INTO notificacoes (user_id, titulo, mensagem, tipo, scheduled_for, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, titulo, mensagem, tipo, lida, scheduled_for, delivered_at, created_at
	`, req.UserID, req.Titulo, req.Mensagem, req.Tipo, req.ScheduledFor, deliveredAt).Scan(
		&n.ID, &n.UserID, &n.Titulo, &n.Mensagem, &n.Tipo, &n.Lida, &n.ScheduledFor, &n.DeliveredAt, &n.CreatedAt)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("insert notificacao: %w", err)
	}

	return &n, http.StatusCreated, nil
}

// Broadcast creates one notification per active user. Used for system-wide
// announcements from the admin panel.
func (s *NotificacaoService) Broadcast(ctx context.Context, titulo, mensagem, tipo string) (int64, int, error) {
	titulo = strings.TrimSpace(titulo)
	mensagem = strings.TrimSpace(mensagem)
	if titulo == "" || mensagem == "" {
		return 0, http.StatusBadRequest, fmt.Errorf("titulo e mensagem são obrigatórios")
	}
	if tipo == "" {
		tipo = "sistema"
	}
	if !notificacaoTipos[tipo] {
		return 0, http.StatusBadRequest, fmt.Errorf("tipo inválido: %q", tipo)
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO notificacoes (user_id, titulo, mensagem, tipo, delivered_at)
		SELECT id, $1, $2, $3, NOW() FROM users WHERE ativo
	`, titulo, mensagem, tipo)
	if err != nil {
		return 0, http.StatusInternalServerError, fmt.Errorf("broadcast: %w", err)
	}
	return tag.RowsAffected(), http.StatusCreated, nil
}

// MarkRead marks one notification as read. Scoped to the owner.
func (s *NotificacaoService) MarkRead(ctx context.Context, userID, id string) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notificacoes SET lida = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return http.StatusNotFound, fmt.Errorf("notificação não encontrada")
	}
	return http.StatusOK, nil
}

// MarkAllRead marks every delivered notification of a user as read.
func (s *NotificacaoService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notificacoes SET lida = TRUE
		WHERE user_id = $1 AND NOT lida AND (scheduled_for IS NULL OR delivered_at IS NOT NULL)
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a notification. Scoped to the owner.
func (s *NotificacaoService) Delete(ctx context.Context, userID, id string) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM notificacoes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("delete notificacao: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return http.StatusNotFound, fmt.Errorf("notificação não encontrada")
	}
	return http.StatusOK, nil
}

// DeliverDue marks scheduled notifications whose time has come as delivered.
// Called by the scheduler.
func (s *NotificacaoService) DeliverDue(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notificacoes SET delivered_at = NOW()
		WHERE delivered_at IS NULL AND scheduled_for IS NOT NULL AND scheduled_for <= NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("deliver due: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeOld deletes read notifications older than the retention window.
func (s *NotificacaoService) PurgeOld(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `
		DELETE FROM notificacoes
		WHERE lida AND created_at < NOW() - make_interval(days => $1)
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("purge old: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetForUser returns a notification only if it belongs to the user.
func (s *NotificacaoService) GetForUser(ctx context.Context, userID, id string) (*Notificacao, int, error) {
	var n Notificacao
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, titulo, mensagem, tipo, lida, scheduled_for, delivered_at, created_at
		FROM notificacoes WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&n.ID, &n.UserID, &n.Titulo, &n.Mensagem, &n.Tipo, &n.Lida, &n.ScheduledFor, &n.DeliveredAt, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, http.StatusNotFound, fmt.Errorf("notificação não encontrada")
		}
		return nil, http.StatusInternalServerError, fmt.Errorf("get notificacao: %w", err)
	}
	return &n, http.StatusOK, nil
}
