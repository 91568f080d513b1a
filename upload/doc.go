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


// Package upload persists image files for assets and attaches them to the
// asset record.
//
// # Components
//
//   - Store: file persistence. DiskStore keeps uploads in a flat directory
//     with UUID-unique names and bounded JPEG thumbnails.
//   - Uploader: the attach/remove workflow over a Store, an asset
//     repository and the AI provider.
//
// # Attach Workflow
//
// Attach validates that the bytes decode as an image and that the target
// asset exists, saves the file and its thumbnail, then (when autoTag is
// set) tags and embeds the image in parallel before appending the record
// to the asset. The append is atomic in the storage layer. If any step
// after the save fails, the saved files are removed, so failures never
// leak files onto disk.
//
// # Temporary Files
//
// WithTemp scopes a transient file to a callback, removing it on every
// exit path. Image search uses it for query images that must exist on
// disk only while they are being embedded.
//
// # Usage
//
//	files, err := upload.NewDiskStore("uploads")
//	if err != nil {
//		return err
//	}
//	uploader := upload.NewUploader(repo, files, provider)
//
//	receipt, err := uploader.Attach(ctx, assetID, data, "tents.jpg", "image/jpeg", "north camp", true)
//	if err != nil {
//		return err
//	}
//	fmt.Printf("attached %s, asset now has %d images\n", receipt.Image.URL, receipt.Counts.ImageCount)
package upload
