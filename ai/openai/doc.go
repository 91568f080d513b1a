// Copyright 2025 Mercil Contributors
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


// Package openai implements the ai interfaces over any service speaking
// the OpenAI wire protocol, which in practice means Ollama, LocalAI,
// vLLM, Infinity, or OpenAI itself. All traffic goes through the
// langchaingo client.
//
// The embedder sends text directly and images as base64 data URIs, so a
// CLIP-class multimodal embedding server produces vectors in one shared
// space. The tagger sends image bytes to a vision chat model and parses
// JSON labels from the response.
//
// # Usage
//
//	config := ai.DefaultConfig()
//	// Or customize:
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),  // /v1 added automatically
//	    ai.WithEmbeddingModel("clip-vit-b-32"),
//	    ai.WithVisionModel("qwen2.5vl:7b"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	// Use the services
//	vec, err := provider.Embedder().EmbedText(ctx, "emergency shelter with beds")
//	tags, err := provider.Tagger().TagImage(ctx, imageBytes, "image/jpeg")
package openai
