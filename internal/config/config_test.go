package config

import "testing"

func TestValidateRejectsBadStorageBackend(t *testing.T) {
	cfg := &Config{
		StorageBackend: "oracle",
		StorageMode:    "suggested",
		VectorProvider: "embedded",
		DbPath:         "./x.db",
		EmbeddingDim:   768,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for unknown storage backend")
	}
}

func TestValidateRejectsRemoteVectorWithoutURL(t *testing.T) {
	cfg := &Config{
		StorageBackend: "sqlite",
		StorageMode:    "suggested",
		VectorProvider: "remote",
		DbPath:         "./x.db",
		EmbeddingDim:   768,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for remote vector provider missing vector-url")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := &Config{
		StorageBackend: "sqlite",
		StorageMode:    "suggested",
		VectorProvider: "embedded",
		DbPath:         "./x.db",
		EmbeddingDim:   768,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestGetChunkTokensDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetChunkTokens(); got != 512 {
		t.Errorf("GetChunkTokens() = %d, want 512", got)
	}
	cfg.ChunkTokens = 256
	if got := cfg.GetChunkTokens(); got != 256 {
		t.Errorf("GetChunkTokens() = %d, want 256", got)
	}
}

func TestGetEmbeddingBatchSizeDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetEmbeddingBatchSize(); got != 32 {
		t.Errorf("GetEmbeddingBatchSize() = %d, want 32", got)
	}
}
