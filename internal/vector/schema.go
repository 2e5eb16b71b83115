package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema checks if the DocumentChunk class exists and creates it if
// not, adding any properties missing from an older deployment.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	className := "DocumentChunk"
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "documentId",
			DataType: []string{"string"}, // UUID as string (exact match)
		},
		{
			Name:     "scope",
			DataType: []string{"string"}, // "global" or "user"
		},
		{
			Name:     "ownerId",
			DataType: []string{"int"},
		},
		{
			Name:     "chunkIndex",
			DataType: []string{"int"},
		},
		{
			Name:     "page",
			DataType: []string{"int"},
		},
		{
			Name:     "language",
			DataType: []string{"string"},
		},
		{
			Name:     "filename",
			DataType: []string{"text"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "An embedded chunk of an ingested PDF document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}

	return nil
}
