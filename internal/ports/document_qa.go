package ports

import (
	"context"
	"io"

	"github.com/bnema/docqa-cli/internal/domain"
)

// Upload is a single file handed to the upload endpoint.
type Upload struct {
	Name string
	Size int64
	Body io.Reader
}

// DocumentQA is the remote document question-answering service. Methods
// return a decoded result for anything the service answered, and an error
// wrapping domain.ErrTransport when the exchange itself failed.
type DocumentQA interface {
	Ask(ctx context.Context, question string) (domain.AskResult, error)
	Upload(ctx context.Context, upload Upload) (domain.UploadResult, error)
	ClearDocuments(ctx context.Context) (domain.ClearResult, error)
	Status(ctx context.Context) (domain.StatusResult, error)
}
