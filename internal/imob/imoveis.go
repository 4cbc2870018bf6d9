package imob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var imovelTipos = map[string]bool{
	"casa": true, "apartamento": true, "terreno": true,
	"chacara": true, "sitio": true, "fazenda": true, "comercial": true,
}

var imovelFinalidades = map[string]bool{
	"venda": true, "aluguel": true, "ambos": true,
}

// imovelSortColumns is the allow-list for ORDER BY. Anything else falls back
// to created_at.
var imovelSortColumns = map[string]string{
	"created_at": "i.created_at",
	"updated_at": "i.updated_at",
	"nome":       "i.nome",
	"valor":      "COALESCE(i.valor_venda, i.valor_aluguel)",
	"quartos":    "i.quartos",
	"area_total": "i.area_total",
}

type ImovelService struct {
	db *pgxpool.Pool
}

func NewImovelService(db *pgxpool.Pool) *ImovelService {
	return &ImovelService{db: db}
}

type Imovel struct {
	ID              string         `json:"id"`
	Nome            string         `json:"nome"`
	Descricao       *string        `json:"descricao"`
	Tipo            string         `json:"tipo"`
	Finalidade      string         `json:"finalidade"`
	ValorVenda      *float64       `json:"valor_venda"`
	ValorAluguel    *float64       `json:"valor_aluguel"`
	Quartos         int            `json:"quartos"`
	Banheiros       int            `json:"banheiros"`
	VagasGaragem    int            `json:"vagas_garagem"`
	AreaTotal       *float64       `json:"area_total"`
	AreaConstruida  *float64       `json:"area_construida"`
	Endereco        *string        `json:"endereco"`
	Bairro          *string        `json:"bairro"`
	CidadeID        *string        `json:"cidade_id"`
	CidadeNome      *string        `json:"cidade_nome,omitempty"`
	Caracteristicas []string       `json:"caracteristicas"`
	Destaque        bool           `json:"destaque"`
	Ativo           bool           `json:"ativo"`
	UserID          *string        `json:"user_id,omitempty"`
	Imagens         []ImovelImagem `json:"imagens,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type ImovelImagem struct {
	ID          string    `json:"id"`
	ImovelID    string    `json:"imovel_id"`
	S3Key       string    `json:"-"`
	URL         string    `json:"url"`
	ContentType *string   `json:"content_type,omitempty"`
	SizeBytes   *int64    `json:"size_bytes,omitempty"`
	Ordem       int       `json:"ordem"`
	Principal   bool      `json:"principal"`
	CreatedAt   time.Time `json:"created_at"`
}

type ImovelFilter struct {
	CidadeID   string
	Tipo       string
	Finalidade string
	ValorMin   *float64
	ValorMax   *float64
	Quartos    *int
	Destaque   *bool
	Ativo      *bool
	Busca      string
	OrderBy    string
	OrderDesc  bool
	Page       int
	PerPage    int
}

type ImovelListResult struct {
	Imoveis []Imovel `json:"imoveis"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
}

type ImovelRequest struct {
	Nome            string   `json:"nome"`
	Descricao       *string  `json:"descricao"`
	Tipo            string   `json:"tipo"`
	Finalidade      string   `json:"finalidade"`
	ValorVenda      *float64 `json:"valor_venda"`
	ValorAluguel    *float64 `json:"valor_aluguel"`
	Quartos         int      `json:"quartos"`
	Banheiros       int      `json:"banheiros"`
	VagasGaragem    int      `json:"vagas_garagem"`
	AreaTotal       *float64 `json:"area_total"`
	AreaConstruida  *float64 `json:"area_construida"`
	Endereco        *string  `json:"endereco"`
	Bairro          *string  `json:"bairro"`
	CidadeID        *string  `json:"cidade_id"`
	Caracteristicas []string `json:"caracteristicas"`
	Destaque        bool     `json:"destaque"`
	Ativo           *bool    `json:"ativo"`
}

// ValidateImovelRequest checks enums and numeric ranges. Exported so the
// maintenance CLI can reuse it when seeding data.
func ValidateImovelRequest(req ImovelRequest) error {
	if strings.TrimSpace(req.Nome) == "" {
		return fmt.Errorf("nome é obrigatório")
	}
	if !imovelTipos[req.Tipo] {
		return fmt.Errorf("tipo inválido: %q", req.Tipo)
	}
	if !imovelFinalidades[req.Finalidade] {
		return fmt.Errorf("finalidade inválida: %q", req.Finalidade)
	}
	switch req.Finalidade {
	case "venda":
		if req.ValorVenda == nil {
			return fmt.Errorf("valor_venda é obrigatório para finalidade venda")
		}
	case "aluguel":
		if req.ValorAluguel == nil {
			return fmt.Errorf("valor_aluguel é obrigatório para finalidade aluguel")
		}
	case "ambos":
		if req.ValorVenda == nil || req.ValorAluguel == nil {
			return fmt.Errorf("valor_venda e valor_aluguel são obrigatórios para finalidade ambos")
		}
	}
	for name, v := range map[string]*float64{
		"valor_venda": req.ValorVenda, "valor_aluguel": req.ValorAluguel,
		"area_total": req.AreaTotal, "area_construida": req.AreaConstruida,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s não pode ser negativo", name)
		}
	}
	if req.Quartos < 0 || req.Banheiros < 0 || req.VagasGaragem < 0 {
		return fmt.Errorf("quartos, banheiros e vagas_garagem não podem ser negativos")
	}
	return nil
}

// List returns imóveis matching the filter, paginated.
func (s *ImovelService) List(ctx context.Context, f ImovelFilter) (*ImovelListResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	where := []string{"TRUE"}
	args := []interface{}{}
	i := 1

	add := func(cond string, val interface{}) {
		where = append(where, fmt.Sprintf(cond, i))
		args = append(args, val)
		i++
	}

	if f.CidadeID != "" {
		add("i.cidade_id = $%d", f.CidadeID)
	}
	if f.Tipo != "" {
		add("i.tipo = $%d", f.Tipo)
	}
	if f.Finalidade != "" {
		add("i.finalidade = $%d", f.Finalidade)
	}
	if f.ValorMin != nil {
		add("COALESCE(i.valor_venda, i.valor_aluguel) >= $%d", *f.ValorMin)
	}
	if f.ValorMax != nil {
		add("COALESCE(i.valor_venda, i.valor_aluguel) <= $%d", *f.ValorMax)
	}
	if f.Quartos != nil {
		add("i.quartos >= $%d", *f.Quartos)
	}
	if f.Destaque != nil {
		add("i.destaque = $%d", *f.Destaque)
	}
	if f.Ativo != nil {
		add("i.ativo = $%d", *f.Ativo)
	}
	if f.Busca != "" {
		where = append(where, fmt.Sprintf("(i.nome ILIKE $%d OR i.endereco ILIKE $%d OR i.bairro ILIKE $%d)", i, i, i))
		args = append(args, "%"+f.Busca+"%")
		i++
	}

	cond := strings.Join(where, " AND ")

	var total int
	err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM imoveis i WHERE %s`, cond), args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count imoveis: %w", err)
	}

	orderCol, ok := imovelSortColumns[f.OrderBy]
	if !ok {
		orderCol = "i.created_at"
	}
	dir := "ASC"
	if f.OrderDesc || f.OrderBy == "" {
		dir = "DESC"
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT i.id, i.nome, i.descricao, i.tipo, i.finalidade, i.valor_venda, i.valor_aluguel,
		       i.quartos, i.banheiros, i.vagas_garagem, i.area_total, i.area_construida,
		       i.endereco, i.bairro, i.cidade_id, c.nome, i.caracteristicas,
		       i.destaque, i.ativo, i.user_id, i.created_at, i.updated_at
		FROM imoveis i
		LEFT JOIN cidades c ON c.id = i.cidade_id
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`, cond, orderCol, dir, i, i+1), args...)
	if err != nil {
		return nil, fmt.Errorf("list imoveis: %w", err)
	}
	defer rows.Close()

	imoveis := []Imovel{}
	for rows.Next() {
		im, err := scanImovel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan imovel: %w", err)
		}
		imoveis = append(imoveis, *im)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate imoveis: %w", err)
	}

	return &ImovelListResult{Imoveis: imoveis, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}

// Get returns a single imóvel with its images.
func (s *ImovelService) Get(ctx context.Context, id string) (*Imovel, int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT i.id, i.nome, i.descricao, i.tipo, i.finalidade, i.valor_venda, i.valor_aluguel,
		       i.quartos, i.banheiros, i.vagas_garagem, i.area_total, i.area_construida,
		       i.endereco, i.bairro, i.cidade_id, c.nome, i.caracteristicas,
		       i.destaque, i.ativo, i.user_id, i.created_at, i.updated_at
		FROM imoveis i
		LEFT JOIN cidades c ON c.id = i.cidade_id
		WHERE i.id = $1
	`, id)

	im, err := scanImovel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, http.StatusNotFound, fmt.Errorf("imóvel não encontrado")
		}
		return nil, http.StatusInternalServerError, fmt.Errorf("get imovel: %w", err)
	}

	imagens, err := s.ListImages(ctx, id)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("list images: %w", err)
	}
	im.Imagens = imagens

	return im, http.StatusOK, nil
}

// Create inserts a new imóvel owned by userID.
func (s *ImovelService) Create(ctx context.Context, userID string, req ImovelRequest) (*Imovel, int, error) {
	if err := ValidateImovelRequest(req); err != nil {
		return nil, http.StatusBadRequest, err
	}

	if req.CidadeID != nil {
		if status, err := s.checkCidade(ctx, *req.CidadeID); err != nil {
			return nil, status, err
		}
	}

	caracJSON, _ := json.Marshal(normalizeCaracteristicas(req.Caracteristicas))

	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO imoveis (nome, descricao, tipo, finalidade, valor_venda, valor_aluguel,
		                     quartos, banheiros, vagas_garagem, area_total, area_construida,
		                     endereco, bairro, cidade_id, caracteristicas, destaque, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`, strings.TrimSpace(req.Nome), req.Descricao, req.Tipo, req.Finalidade, req.ValorVenda, req.ValorAluguel,
		req.Quartos, req.Banheiros, req.VagasGaragem, req.AreaTotal, req.AreaConstruida,
		req.Endereco, req.Bairro, req.CidadeID, string(caracJSON), req.Destaque, userID).Scan(&id)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("insert imovel: %w", err)
	}

	return s.Get(ctx, id)
}

// Update replaces the mutable fields of an imóvel.
func (s *ImovelService) Update(ctx context.Context, id string, req ImovelRequest) (*Imovel, int, error) {
	if err := ValidateImovelRequest(req); err != nil {
		return nil, http.StatusBadRequest, err
	}

	if req.CidadeID != nil {
		if status, err := s.checkCidade(ctx, *req.CidadeID); err != nil {
			return nil, status, err
		}
	}

	ativo := true
	if req.Ativo != nil {
		ativo = *req.Ativo
	}

	caracJSON, _ := json.Marshal(normalizeCaracteristicas(req.Caracteristicas))

	tag, err := s.db.Exec(ctx, `
		UPDATE imoveis SET
			nome = $1, descricao = $2, tipo = $3, finalidade = $4,
			valor_venda = $5, valor_aluguel = $6, quartos = $7, banheiros = $8,
			vagas_garagem = $9, area_total = $10, area_construida = $11,
			endereco = $12, bairro = $13, cidade_id = $14, caracteristicas = $15,
			destaque = $16, ativo = $17, updated_at = NOW()
		WHERE id = $18
	`, strings.TrimSpace(req.Nome), req.Descricao, req.Tipo, req.Finalidade,
		req.ValorVenda, req.ValorAluguel, req.Quartos, req.Banheiros,
		req.VagasGaragem, req.AreaTotal, req.AreaConstruida,
		req.Endereco, req.Bairro, req.CidadeID, string(caracJSON),
		req.Destaque, ativo, id)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("update imovel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, http.StatusNotFound, fmt.Errorf("imóvel não encontrado")
	}

	return s.Get(ctx, id)
}

// Deactivate soft-deletes an imóvel (ativo = false). Listings keep working,
// the record just drops out of active searches.
func (s *ImovelService) Deactivate(ctx context.Context, id string) (int, error) {
	tag, err := s.db.Exec(ctx, `UPDATE imoveis SET ativo = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("deactivate imovel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return http.StatusNotFound, fmt.Errorf("imóvel não encontrado")
	}
	return http.StatusOK, nil
}

// Delete hard-deletes an imóvel and returns the S3 keys of its images so the
// caller can clean up storage.
func (s *ImovelService) Delete(ctx context.Context, id string) ([]string, int, error) {
	imagens, err := s.ListImages(ctx, id)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("list images: %w", err)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM imoveis WHERE id = $1`, id)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("delete imovel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, http.StatusNotFound, fmt.Errorf("imóvel não encontrado")
	}

	keys := make([]string, 0, len(imagens))
	for _, img := range imagens {
		keys = append(keys, img.S3Key)
	}
	return keys, http.StatusOK, nil
}

// ---------- images ----------

// ListImages returns an imóvel's images ordered by ordem.
func (s *ImovelService) ListImages(ctx context.Context, imovelID string) ([]ImovelImagem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, imovel_id, s3_key, url, content_type, size_bytes, ordem, principal, created_at
		FROM imovel_imagens WHERE imovel_id = $1
		ORDER BY ordem, created_at
	`, imovelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	imagens := []ImovelImagem{}
	for rows.Next() {
		var img ImovelImagem
		if err := rows.Scan(&img.ID, &img.ImovelID, &img.S3Key, &img.URL, &img.ContentType, &img.SizeBytes, &img.Ordem, &img.Principal, &img.CreatedAt); err != nil {
			return nil, err
		}
		imagens = append(imagens, img)
	}
	return imagens, rows.Err()
}

// AddImage records an uploaded image. The first image of an imóvel becomes
// the cover automatically.
func (s *ImovelService) AddImage(ctx context.Context, imovelID, s3Key, url, contentType string, sizeBytes int64) (*ImovelImagem, int, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM imoveis WHERE id = $1)`, imovelID).Scan(&exists)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("check imovel: %w", err)
	}
	if !exists {
		return nil, http.StatusNotFound, fmt.Errorf("imóvel não encontrado")
	}

	var img ImovelImagem
	err = s.db.QueryRow(ctx, `
		INSERT INTO imovel_imagens (imovel_id, s3_key, url, content_type, size_bytes, ordem, principal)
		SELECT $1, $2, $3, $4, $5,
		       COALESCE(MAX(ordem) + 1, 0),
		       NOT EXISTS(SELECT 1 FROM imovel_imagens WHERE imovel_id = $1)
		FROM imovel_imagens WHERE imovel_id = $1
		RETURNING id, imovel_id, s3_key, url, content_type, size_bytes, ordem, principal, created_at
	`, imovelID, s3Key, url, contentType, sizeBytes).Scan(
		&img.ID, &img.ImovelID, &img.S3Key, &img.URL, &img.ContentType, &img.SizeBytes, &img.Ordem, &img.Principal, &img.CreatedAt)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("insert image: %w", err)
	}

	return &img, http.StatusCreated, nil
}

// SetCoverImage marks one image as principal and clears the flag on the rest.
func (s *ImovelService) SetCoverImage(ctx context.Context, imovelID, imageID string) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE imovel_imagens SET principal = TRUE WHERE id = $1 AND imovel_id = $2`, imageID, imovelID)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("set cover: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return http.StatusNotFound, fmt.Errorf("imagem não encontrada")
	}

	_, err = tx.Exec(ctx, `UPDATE imovel_imagens SET principal = FALSE WHERE imovel_id = $1 AND id <> $2`, imovelID, imageID)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("clear cover: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return http.StatusInternalServerError, fmt.Errorf("commit: %w", err)
	}
	return http.StatusOK, nil
}

// DeleteImage removes an image record and returns its S3 key for cleanup.
func (s *ImovelService) DeleteImage(ctx context.Context, imovelID, imageID string) (string, int, error) {
	var s3Key string
	err := s.db.QueryRow(ctx, `
		DELETE FROM imovel_imagens WHERE id = $1 AND imovel_id = $2 RETURNING s3_key
	`, imageID, imovelID).Scan(&s3Key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", http.StatusNotFound, fmt.Errorf("imagem não encontrada")
		}
		return "", http.StatusInternalServerError, fmt.Errorf("delete image: %w", err)
	}
	return s3Key, http.StatusOK, nil
}

// ---------- internals ----------

func (s *ImovelService) checkCidade(ctx context.Context, cidadeID string) (int, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cidades WHERE id = $1 AND ativa)`, cidadeID).Scan(&exists)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("check cidade: %w", err)
	}
	if !exists {
		return http.StatusBadRequest, fmt.Errorf("cidade não encontrada ou inativa")
	}
	return http.StatusOK, nil
}

func normalizeCaracteristicas(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool)
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func scanImovel(row pgx.Row) (*Imovel, error) {
	var im Imovel
	var caracJSON []byte
	err := row.Scan(&im.ID, &im.Nome, &im.Descricao, &im.Tipo, &im.Finalidade,
		&im.ValorVenda, &im.ValorAluguel, &im.Quartos, &im.Banheiros, &im.VagasGaragem,
		&im.AreaTotal, &im.AreaConstruida, &im.Endereco, &im.Bairro,
		&im.CidadeID, &im.CidadeNome, &caracJSON,
		&im.Destaque, &im.Ativo, &im.UserID, &im.CreatedAt, &im.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(caracJSON) > 0 {
		json.Unmarshal(caracJSON, &im.Caracteristicas)
	}
	if im.Caracteristicas == nil {
		im.Caracteristicas = []string{}
	}
	return &im, nil
}
