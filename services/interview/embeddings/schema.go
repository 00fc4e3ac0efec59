// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// AnswerClassName is the Weaviate class holding indexed answers.
const AnswerClassName = "Answer"

// GetAnswerSchema returns the schema for the Answer class. Vectors are
// supplied by this service, so the class uses no Weaviate vectorizer.
func GetAnswerSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       AnswerClassName,
		Description: "A single recorded interview answer with its embedding",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "The interview session the answer belongs to.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "label",
				DataType:        []string{"text"},
				Description:     "The internal question label (never shown to respondents).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "category",
				DataType:        []string{"text"},
				Description:     "The question's category label.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "subcategory",
				DataType:        []string{"text"},
				Description:     "The question's subcategory label.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "question",
				DataType:     []string{"text"},
				Description:  "The question text as presented.",
				Tokenization: "word",
			},
			{
				Name:         "answer",
				DataType:     []string{"text"},
				Description:  "The respondent's answer text.",
				Tokenization: "word",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the answer was indexed.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates the Answer class if it does not already exist.
func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	class := GetAnswerSchema()
	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", class.Class)
		return nil
	}
	slog.Info("Schema not found, creating it", "class", class.Class)
	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("creating schema for class %s: %w", class.Class, err)
	}
	return nil
}
