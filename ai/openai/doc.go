// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// It talks to OpenAI or compatible servers (Ollama, LocalAI, vLLM, a model
// gateway) through langchaingo. Extraction uses JSON mode at temperature 0
// and tolerates fenced or slightly broken JSON. Provider errors are mapped
// onto the ai failure sentinels so callers can decide whether to retry.
//
// # Usage
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	items, err := provider.Extractor().ExtractItems(ctx, chunkText)
//	vector, err := provider.Embedder().EmbedText(ctx, items[0].Text)
package openai
