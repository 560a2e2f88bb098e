package param

import (
	"context"
	"errors"
	"strings"

	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type ParameterGetter interface {
	GetParameter(context.Context, *ssm.GetParameterInput, ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStoreFetcher reads a SecureString holding the bootstrap API key.
type ParameterStoreFetcher struct {
	client ParameterGetter
}

func NewParameterStoreFetcher(client ParameterGetter) *ParameterStoreFetcher {
	return &ParameterStoreFetcher{client: client}
}

// Fetch returns "" without an error when the parameter does not exist, the
// same as an unset environment variable.
func (f *ParameterStoreFetcher) Fetch(ctx context.Context, name string) (string, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("param").With("source", "ssm", "name", name)

	out, err := f.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		logger.Debug("bootstrap key parameter not found")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if out.Parameter == nil {
		return "", nil
	}
	value := strings.TrimSpace(aws.ToString(out.Parameter.Value))
	logger.Debug("fetched bootstrap key parameter", "empty", value == "")
	return value, nil
}
