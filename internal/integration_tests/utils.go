package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finsent-backend/internal/core"
	"finsent-backend/internal/database"
	"finsent-backend/internal/storage"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

const (
	minioUsername = "admin"
	minioPassword = "password"
)

func setupMinioContainer(t *testing.T, ctx context.Context) string {
	minioContainer, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		err := minioContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MinIO container")
	})

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

func setupS3Provider(t *testing.T, ctx context.Context) *storage.S3Provider {
	t.Helper()

	endpoint := setupMinioContainer(t, ctx)

	provider, err := storage.NewS3Provider(ctx, storage.S3ProviderConfig{
		S3EndpointURL:     endpoint,
		S3AccessKeyID:     minioUsername,
		S3SecretAccessKey: minioPassword,
		S3Region:          "us-east-1",
	})
	require.NoError(t, err)
	return provider
}

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func createDB(t *testing.T) *gorm.DB {
	uri := setupPostgresContainer(t, context.Background())
	db, err := database.NewDatabase(uri)
	require.NoError(t, err)

	return db
}

var checkpointVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
	"company", "x", "beat", "earnings", "estimates", "significant", "##ly",
	"filed", "for", "bank", "##ruptcy", ".",
}

const checkpointConfig = `{
  "architectures": ["BertForSequenceClassification"],
  "vocab_size": 17,
  "hidden_size": 8,
  "num_hidden_layers": 1,
  "num_attention_heads": 1,
  "max_position_embeddings": 512,
  "type_vocab_size": 2,
  "id2label": {"0": "Neutral", "1": "Positive", "2": "Negative"}
}`

// uploadCheckpoint stores a checkpoint layout under bucket/prefix. The model
// file is a placeholder; tests load it with keywordModel.
func uploadCheckpoint(t *testing.T, ctx context.Context, provider storage.Provider, bucket, prefix string) {
	files := map[string]string{
		"config.json": checkpointConfig,
		"vocab.txt":   strings.Join(checkpointVocab, "\n") + "\n",
		"model.onnx":  "placeholder",
	}
	for name, content := range files {
		require.NoError(t, provider.PutObject(ctx, bucket, prefix+"/"+name, strings.NewReader(content)))
	}
}

// keywordModel scores positive and negative vocabulary ids.
type keywordModel struct{}

func (keywordModel) Forward(enc core.Encoding) ([]float32, error) {
	logits := []float32{0.5, 0, 0}
	for i, id := range enc.InputIds {
		if enc.AttentionMask[i] == 0 {
			continue
		}
		switch checkpointVocab[id] {
		case "beat", "significant":
			logits[1] += 1.5
		case "bank", "##ruptcy":
			logits[2] += 1.5
		}
	}
	return logits, nil
}

func (keywordModel) Release() {}

func loadKeywordModel(path string, numLabels int) (core.Model, error) {
	if numLabels != 3 {
		return nil, fmt.Errorf("expected 3 labels, got %d", numLabels)
	}
	return keywordModel{}, nil
}

func httpRequest(api http.Handler, method, endpoint string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		requestBody, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(requestBody)
	}

	req := httptest.NewRequest(method, endpoint, body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	api.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		return fmt.Errorf("expected status code 200, got %d: %v", rr.Code, rr.Body.String())
	}

	if dest != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
