package imob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// allowedImageTypes maps accepted content types to file extensions.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// StorageService uploads property photos to an S3-compatible bucket. The
// bucket credentials live in storage_settings, encrypted with the server
// storage secret.
type StorageService struct {
	db     *pgxpool.Pool
	secret string
}

func NewStorageService(db *pgxpool.Pool, secret string) *StorageService {
	return &StorageService{db: db, secret: secret}
}

type SaveStorageSettingsRequest struct {
	S3Endpoint    string `json:"s3_endpoint"`
	S3Region      string `json:"s3_region"`
	S3Bucket      string `json:"s3_bucket"`
	S3AccessKey   string `json:"s3_access_key"`
	S3SecretKey   string `json:"s3_secret_key"`
	S3PathPrefix  string `json:"s3_path_prefix,omitempty"`
	PublicBaseURL string `json:"public_base_url,omitempty"`
	Enabled       *bool  `json:"enabled,omitempty"`
}

// StorageSettingsResponse is the public-facing settings view (no keys).
type StorageSettingsResponse struct {
	ID            string `json:"id"`
	S3Endpoint    string `json:"s3_endpoint"`
	S3Region      string `json:"s3_region"`
	S3Bucket      string `json:"s3_bucket"`
	S3PathPrefix  string `json:"s3_path_prefix"`
	PublicBaseURL string `json:"public_base_url"`
	Enabled       bool   `json:"enabled"`
}

type storageSettingsInternal struct {
	ID                   string
	S3Endpoint           string
	S3Region             string
	S3Bucket             string
	S3AccessKeyEncrypted string
	S3SecretKeyEncrypted string
	S3PathPrefix         string
	PublicBaseURL        string
	Enabled              bool
}

// SaveSettings encrypts the S3 keys and upserts the single settings row.
func (s *StorageService) SaveSettings(ctx context.Context, req SaveStorageSettingsRequest) (*StorageSettingsResponse, int, error) {
	if req.S3Endpoint == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("s3_endpoint é obrigatório")
	}
	if req.S3Bucket == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("s3_bucket é obrigatório")
	}
	if req.S3AccessKey == "" || req.S3SecretKey == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("s3_access_key e s3_secret_key são obrigatórios")
	}

	region := req.S3Region
	if region == "" {
		region = "us-east-1"
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	accessKeyEnc, err := EncryptSecret(req.S3AccessKey, s.secret)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("encrypt access key: %w", err)
	}
	secretKeyEnc, err := EncryptSecret(req.S3SecretKey, s.secret)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("encrypt secret key: %w", err)
	}

	// Single row: wipe and insert inside a transaction
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM storage_settings`); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("clear settings: %w", err)
	}

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO storage_settings (
			s3_endpoint, s3_region, s3_bucket,
			s3_access_key_encrypted, s3_secret_key_encrypted,
			s3_path_prefix, public_base_url, enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, req.S3Endpoint, region, req.S3Bucket, accessKeyEnc, secretKeyEnc,
		req.S3PathPrefix, req.PublicBaseURL, enabled).Scan(&id)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("insert settings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("commit: %w", err)
	}

	return &StorageSettingsResponse{
		ID:            id,
		S3Endpoint:    req.S3Endpoint,
		S3Region:      region,
		S3Bucket:      req.S3Bucket,
		S3PathPrefix:  req.S3PathPrefix,
		PublicBaseURL: req.PublicBaseURL,
		Enabled:       enabled,
	}, http.StatusOK, nil
}

// GetSettings returns the settings without decrypted keys.
func (s *StorageService) GetSettings(ctx context.Context) (*StorageSettingsResponse, int, error) {
	var resp StorageSettingsResponse
	err := s.db.QueryRow(ctx, `
		SELECT id, s3_endpoint, s3_region, s3_bucket, s3_path_prefix, public_base_url, enabled
		FROM storage_settings LIMIT 1
	`).Scan(&resp.ID, &resp.S3Endpoint, &resp.S3Region, &resp.S3Bucket, &resp.S3PathPrefix, &resp.PublicBaseURL, &resp.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, http.StatusNotFound, fmt.Errorf("armazenamento não configurado")
		}
		return nil, http.StatusInternalServerError, fmt.Errorf("get settings: %w", err)
	}
	return &resp, http.StatusOK, nil
}

// UploadImage streams a property photo to the bucket and returns its key and
// public URL.
func (s *StorageService) UploadImage(ctx context.Context, imovelID, contentType string, body io.Reader) (key, url string, status int, err error) {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", "", http.StatusUnsupportedMediaType, fmt.Errorf("tipo de imagem não suportado: %q", contentType)
	}

	settings, err := s.getSettingsInternal(ctx)
	if err != nil {
		return "", "", http.StatusServiceUnavailable, fmt.Errorf("armazenamento não configurado")
	}
	if !settings.Enabled {
		return "", "", http.StatusServiceUnavailable, fmt.Errorf("armazenamento desabilitado")
	}

	client, err := s.client(ctx, settings)
	if err != nil {
		return "", "", http.StatusInternalServerError, err
	}

	key = path.Join(settings.S3PathPrefix, "imoveis", imovelID, uuid.NewString()+ext)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(settings.S3Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", http.StatusBadGateway, fmt.Errorf("PutObject: %w", err)
	}

	return key, s.publicURL(settings, key), http.StatusCreated, nil
}

// DeleteObject removes an object from the bucket. Best-effort: the DB record
// is authoritative, a dangling object is harmless.
func (s *StorageService) DeleteObject(ctx context.Context, key string) error {
	settings, err := s.getSettingsInternal(ctx)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	client, err := s.client(ctx, settings)
	if err != nil {
		return err
	}

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(settings.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("DeleteObject: %w", err)
	}
	return nil
}

// ---------- internals ----------

func (s *StorageService) getSettingsInternal(ctx context.Context) (*storageSettingsInternal, error) {
	var st storageSettingsInternal
	err := s.db.QueryRow(ctx, `
		SELECT id, s3_endpoint, s3_region, s3_bucket,
			s3_access_key_encrypted, s3_secret_key_encrypted,
			s3_path_prefix, public_base_url, enabled
		FROM storage_settings LIMIT 1
	`).Scan(&st.ID, &st.S3Endpoint, &st.S3Region, &st.S3Bucket,
		&st.S3AccessKeyEncrypted, &st.S3SecretKeyEncrypted,
		&st.S3PathPrefix, &st.PublicBaseURL, &st.Enabled)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *StorageService) client(ctx context.Context, settings *storageSettingsInternal) (*s3.Client, error) {
	accessKey, err := DecryptSecret(settings.S3AccessKeyEncrypted, s.secret)
	if err != nil {
		return nil, fmt.Errorf("decrypt access key: %w", err)
	}
	secretKey, err := DecryptSecret(settings.S3SecretKeyEncrypted, s.secret)
	if err != nil {
		return nil, fmt.Errorf("decrypt secret key: %w", err)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(settings.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.S3Endpoint)
			o.UsePathStyle = true // for MinIO/custom S3-compatible endpoints
		}
	}), nil
}

func (s *StorageService) publicURL(settings *storageSettingsInternal, key string) string {
	if settings.PublicBaseURL != "" {
		return strings.TrimSuffix(settings.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(settings.S3Endpoint, "/"), settings.S3Bucket, key)
}
