package backend

import "context"

// Loader is an optional interface for backends that need to load a model
// before serving it. Load is called once per model; implementations must
// tolerate being called again for a model that is already loaded.
type Loader interface {
	Load(ctx context.Context, modelID, modelPath string, params map[string]any) error
}
