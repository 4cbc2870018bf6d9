package imob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	telefoneRegex = regexp.MustCompile(`^\+?[0-9()\s-]{8,20}$`)
	nonDigits     = regexp.MustCompile(`[^0-9]`)
)

type ClienteService struct {
	db *pgxpool.Pool
}

func NewClienteService(db *pgxpool.Pool) *ClienteService {
	return &ClienteService{db: db}
}

type Cliente struct {
	ID                string    `json:"id"`
	Nome              string    `json:"nome"`
	Email             *string   `json:"email"`
	Telefone          *string   `json:"telefone"`
	CPF               *string   `json:"cpf"`
	Endereco          *string   `json:"endereco"`
	Observacoes       *string   `json:"observacoes"`
	ImovelInteresseID *string   `json:"imovel_interesse_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ClienteRequest struct {
	Nome              string  `json:"nome"`
	Email             *string `json:"email"`
	Telefone          *string `json:"telefone"`
	CPF               *string `json:"cpf"`
	Endereco          *string `json:"endereco"`
	Observacoes       *string `json:"observacoes"`
	ImovelInteresseID *string `json:"imovel_interesse_id"`
}

type ClienteListResult struct {
	Clientes []Cliente `json:"clientes"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
}

// ValidateCPF checks the check digits of a Brazilian CPF. Accepts formatted
// ("123.456.789-09") or bare digits.
func ValidateCPF(cpf string) bool {
	digits := nonDigits.ReplaceAllString(cpf, "")
	if len(digits) != 11 {
		return false
	}

	// All-same-digit CPFs pass the checksum but are invalid
	same := true
	for i := 1; i < 11; i++ {
		if digits[i] != digits[0] {
			same = false
			break
		}
	}
	if same {
		return false
	}

	for _, n := range []int{9, 10} {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(digits[i]-'0') * (n + 1 - i)
		}
		check := (sum * 10) % 11 % 10
		if check != int(digits[n]-'0') {
			return false
		}
	}
	return true
}

// ValidateClienteRequest normalizes and validates a cliente payload. CPF is
// stored as bare digits.
func ValidateClienteRequest(req *ClienteRequest) error {
	req.Nome = strings.TrimSpace(req.Nome)
	if req.Nome == "" {
		return fmt.Errorf("nome é obrigatório")
	}
	if req.Email != nil && *req.Email != "" {
		e := strings.ToLower(strings.TrimSpace(*req.Email))
		if !emailRegex.MatchString(e) {
			return fmt.Errorf("email inválido")
		}
		req.Email = &e
	}
	if req.Telefone != nil && *req.Telefone != "" && !telefoneRegex.MatchString(*req.Telefone) {
		return fmt.Errorf("telefone inválido")
	}
	if req.CPF != nil && *req.CPF != "" {
		if !ValidateCPF(*req.CPF) {
			return fmt.Errorf("CPF inválido")
		}
		digits := nonDigits.ReplaceAllString(*req.CPF, "")
		req.CPF = &digits
	}
	return nil
}

// List returns clientes matching the free-text search, paginated.
func (s *ClienteService) List(ctx context.Context, busca string, page, perPage int) (*ClienteListResult, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	cond := "TRUE"
	args := []interface{}{}
	if busca != "" {
		cond = "(nome ILIKE $1 OR email ILIKE $1 OR telefone ILIKE $1 OR cpf ILIKE $1)"
		args = append(args, "%"+busca+"%")
	}

	var total int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM clientes WHERE `+cond, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count clientes: %w", err)
	}

	limitIdx := len(args) + 1
	args = append(args, perPage, (page-1)*perPage)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT id, nome, email, telefone, cpf, endereco, observacoes, imovel_interesse_id, created_at, updated_at
		FROM clientes WHERE %s
		ORDER BY nome
		LIMIT $%d OFFSET $%d`, cond, limitIdx, limitIdx+1), args...)
	if err != nil {
		return nil, fmt.Errorf("list clientes: %w", err)
	}
	defer rows.Close()

	clientes := []Cliente{}
	for rows.Next() {
		var c Cliente
		if err := rows.Scan(&c.ID, &c.Nome, &c.Email, &c.Telefone, &c.CPF, &c.Endereco, &c.Observacoes, &c.ImovelInteresseID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cliente: %w", err)
		}
		clientes = append(clientes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clientes: %w", err)
	}

	return &ClienteListResult{Clientes: clientes, Total: total, Page: page, PerPage: perPage}, nil
}

// Get returns a single cliente.
func (s *ClienteService) Get(ctx context.Context, id string) (*Cliente, int, error) {
	var c Cliente
	err := s.db.QueryRow(ctx, `
		SELECT id, nome, email, telefone, cpf, endereco, observacoes, imovel_interesse_id, created_at, updated_at
		FROM clientes WHERE id = $1
	`, id).Scan(&c.ID, &c.Nome, &c.Email, &c.Telefone, &c.CPF, &c.Endereco, &c.Observacoes, &c.ImovelInteresseID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, http.StatusNotFound, fmt.Errorf("cliente não encontrado")
		}
		return nil, http.StatusInternalServerError, fmt.Errorf("get cliente: %w", err)
	}
	return &c, http.StatusOK, nil
}

// Create inserts a cliente.
func (s *ClienteService) Create(ctx context.Context, req ClienteRequest) (*Cliente, int, error) {
	if err := ValidateClienteRequest(&req); err != nil {
		return nil, http.StatusBadRequest, err
	}

	if status, err := s.checkImovelInteresse(ctx, req.ImovelInteresseID); err != nil {
		return nil, status, err
	}

	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO clientes (nome, email, telefone, cpf, endereco, observacoes, imovel_interesse_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, req.Nome, req.Email, req.Telefone, req.CPF, req.Endereco, req.Observacoes, req.ImovelInteresseID).Scan(&id)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("insert cliente: %w", err)
	}

	c, status, err := s.Get(ctx, id)
	if err != nil {
		return nil, status, err
	}
	return c, http.StatusCreated, nil
}

// Update replaces a cliente's fields.
func (s *ClienteService) Update(ctx context.Context, id string, req ClienteRequest) (*Cliente, int, error) {
	if err := ValidateClienteRequest(&req); err != nil {
		return nil, http.StatusBadRequest, err
	}

	if status, err := s.checkImovelInteresse(ctx, req.ImovelInteresseID); err != nil {
		return nil, status, err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE clientes SET nome = $1, email = $2, telefone = $3, cpf = $4,
			endereco = $5, observacoes = $6, imovel_interesse_id = $7, updated_at = NOW()
		WHERE id = $8
	`, req.Nome, req.Email, req.Telefone, req.CPF, req.Endereco, req.Observacoes, req.ImovelInteresseID, id)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("update cliente: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, http.StatusNotFound, fmt.Errorf("cliente não encontrado")
	}

	return s.Get(ctx, id)
}

// Delete removes a cliente.
func (s *ClienteService) Delete(ctx context.Context, id string) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM clientes WHERE id = $1`, id)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("delete cliente: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return http.StatusNotFound, fmt.Errorf("cliente não encontrado")
	}
	return http.StatusOK, nil
}

func (s *ClienteService) checkImovelInteresse(ctx context.Context, imovelID *string) (int, error) {
	if imovelID == nil || *imovelID == "" {
		return http.StatusOK, nil
	}
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM imoveis WHERE id = $1)`, *imovelID).Scan(&exists)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("check imovel: %w", err)
	}
	if !exists {
		return http.StatusBadRequest, fmt.Errorf("imóvel de interesse não encontrado")
	}
	return http.StatusOK, nil
}
