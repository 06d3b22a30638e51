package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantos/grantos-api/internal/models"
	"github.com/grantos/grantos-api/pkg/config"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
	"github.com/grantos/grantos-api/pkg/storage"
)

type documentContractStore interface {
	GetByID(ctx context.Context, id string) (*models.Contract, error)
	AppendDocument(ctx context.Context, id string, doc models.ContractDocument) error
}

type documentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
}

// DocumentDownload bundles an opened attachment with its metadata.
type DocumentDownload struct {
	Document models.ContractDocument
	Path     string
}

// DocumentService manages contract attachments. The attachment list is
// append-only: uploads are accepted while the contract is in drafting or
// review, and nothing is ever removed from it.
type DocumentService struct {
	contracts documentContractStore
	storage   documentFileStorage
	signer    *storage.SignedURLSigner
	audit     auditLogger
	logger    *zap.Logger
	cfg       config.DocumentsConfig
}

// NewDocumentService constructs the service.
func NewDocumentService(contracts documentContractStore, files documentFileStorage, signer *storage.SignedURLSigner, cfg config.DocumentsConfig, audit auditLogger, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		contracts: contracts,
		storage:   files,
		signer:    signer,
		audit:     audit,
		logger:    logger,
		cfg:       cfg,
	}
}

// Upload validates and stores one attachment, then appends its metadata
// to the contract's document list.
func (s *DocumentService) Upload(ctx context.Context, contractID string, header *multipart.FileHeader, description string, actor *models.JWTClaims) (*models.ContractDocument, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if header == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if header.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if header.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	mimeType := header.Header.Get("Content-Type")
	if !s.mimeAllowed(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", mimeType))
	}

	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	if !canViewContract(contract, actor) {
		return nil, appErrors.ErrForbidden
	}
	if contract.Status != models.ContractStatusDraft && contract.Status != models.ContractStatusUnderReview {
		return nil, appErrors.ErrContractLocked
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer file.Close() //nolint:errcheck

	doc := models.ContractDocument{
		ID:          uuid.NewString(),
		Filename:    filepath.Base(header.Filename),
		SizeBytes:   header.Size,
		MimeType:    mimeType,
		Description: strings.TrimSpace(description),
		UploadedBy:  actor.UserID,
		UploadedAt:  time.Now().UTC(),
	}
	storedName := fmt.Sprintf("%s/%s_%s", contractID, doc.ID, doc.Filename)
	relPath, err := s.storage.SaveStream(storedName, file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	doc.StoragePath = relPath

	if err := s.contracts.AppendDocument(ctx, contractID, doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrContractLocked
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach document")
	}
	s.emitAudit(ctx, actor, contractID, doc)
	return &doc, nil
}

// SignedDownloadToken issues a short-lived token for one attachment.
func (s *DocumentService) SignedDownloadToken(ctx context.Context, contractID, documentID string, actor *models.JWTClaims) (string, time.Time, error) {
	doc, err := s.findDocument(ctx, contractID, documentID, actor)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Generate(documentID, doc.StoragePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return token, expiresAt, nil
}

// ResolveDownload validates a signed token and returns the stored path
// with the attachment metadata.
func (s *DocumentService) ResolveDownload(ctx context.Context, contractID, token string, actor *models.JWTClaims) (*DocumentDownload, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	doc, err := s.findDocument(ctx, contractID, documentID, actor)
	if err != nil {
		return nil, err
	}
	if doc.StoragePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	return &DocumentDownload{Document: *doc, Path: relPath}, nil
}

// Open returns a handle to a stored attachment.
func (s *DocumentService) Open(relPath string) (io.ReadCloser, error) {
	return s.storage.Open(relPath)
}

func (s *DocumentService) findDocument(ctx context.Context, contractID, documentID string, actor *models.JWTClaims) (*models.ContractDocument, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	if !canViewContract(contract, actor) {
		return nil, appErrors.ErrForbidden
	}
	for i := range contract.Documents {
		if contract.Documents[i].ID == documentID {
			return &contract.Documents[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (s *DocumentService) mimeAllowed(mimeType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, allowed := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(strings.TrimSpace(allowed), mimeType) {
			return true
		}
	}
	return false
}

func (s *DocumentService) emitAudit(ctx context.Context, actor *models.JWTClaims, contractID string, doc models.ContractDocument) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDocumentUpload,
		Resource:   "contract_document",
		ResourceID: &doc.ID,
		IPAddress:  "system",
		UserAgent:  "document-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
