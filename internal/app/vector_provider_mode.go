package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/catalog-search-backend/internal/platform/gcp"
)

type VectorProvider string

const (
	VectorProviderVertex   VectorProvider = "vertex"
	VectorProviderPinecone VectorProvider = "pinecone"
	VectorProviderQdrant   VectorProvider = "qdrant"
	VectorProviderMemory   VectorProvider = "memory"
	VectorProviderDisabled VectorProvider = "none"
)

type VectorProviderSelection struct {
	Provider   VectorProvider
	ModeSource string
}

// resolveVectorProvider honours an explicit VECTOR_PROVIDER; otherwise the
// GCS emulator implies a local Qdrant and real GCS implies Vertex.
func resolveVectorProvider(explicit string, storageMode gcp.ObjectStorageMode) (VectorProviderSelection, error) {
	switch p := VectorProvider(strings.ToLower(strings.TrimSpace(explicit))); p {
	case VectorProviderVertex, VectorProviderPinecone, VectorProviderQdrant, VectorProviderMemory, VectorProviderDisabled:
		return VectorProviderSelection{Provider: p, ModeSource: "explicit"}, nil
	case "":
	default:
		return VectorProviderSelection{}, &VectorProviderBootstrapError{
			Code:              VectorProviderBootstrapErrorInvalidProvider,
			Provider:          string(p),
			ObjectStorageMode: string(storageMode),
			Cause:             fmt.Errorf("unsupported vector provider %q", p),
		}
	}
	switch storageMode {
	case gcp.ObjectStorageModeGCSEmulator:
		return VectorProviderSelection{Provider: VectorProviderQdrant, ModeSource: "object_storage_mode_default"}, nil
	case gcp.ObjectStorageModeGCS, "":
		return VectorProviderSelection{Provider: VectorProviderVertex, ModeSource: "object_storage_mode_default"}, nil
	default:
		return VectorProviderSelection{}, &VectorProviderBootstrapError{
			Code:              VectorProviderBootstrapErrorInvalidStorageMode,
			ObjectStorageMode: string(storageMode),
			Cause:             fmt.Errorf("unsupported object storage mode %q", storageMode),
		}
	}
}
