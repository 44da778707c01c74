// Copyright 2026 Poiesic Systems
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

package badger

// Key prefixes for different data types. Every key is scoped by agent so a
// prefix scan never crosses collections.
const (
	collectionPrefix = "vcol"
	chunkPrefix      = "vchk"
	documentPrefix   = "vdoc"
	keySeparator     = "\x00"
)

// makeCollectionKey generates the metadata key of an agent collection.
// Format: prefix\0agentID
func makeCollectionKey(agentID string) []byte {
	return []byte(collectionPrefix + keySeparator + agentID)
}

// makeChunkPrefix generates the scan prefix of an agent's chunks.
// Format: prefix\0agentID\0
func makeChunkPrefix(agentID string) []byte {
	return []byte(chunkPrefix + keySeparator + agentID + keySeparator)
}

// makeChunkKey generates the key of a chunk.
// Format: prefix\0agentID\0chunkID
func makeChunkKey(agentID, chunkID string) []byte {
	return append(makeChunkPrefix(agentID), chunkID...)
}

// makeAgentDocumentPrefix generates the scan prefix of an agent's document index.
// Format: prefix\0agentID\0
func makeAgentDocumentPrefix(agentID string) []byte {
	return []byte(documentPrefix + keySeparator + agentID + keySeparator)
}

// makeDocumentPrefix generates the scan prefix of one document's chunk index.
// Format: prefix\0agentID\0documentID\0
func makeDocumentPrefix(agentID, documentID string) []byte {
	return append(makeAgentDocumentPrefix(agentID), documentID+keySeparator...)
}

// makeDocumentKey generates a composite key for the document index.
// Format: prefix\0agentID\0documentID\0chunkID
func makeDocumentKey(agentID, documentID, chunkID string) []byte {
	return append(makeDocumentPrefix(agentID, documentID), chunkID...)
}

// chunkIDFromDocumentKey extracts the chunk ID from a document index key.
func chunkIDFromDocumentKey(key []byte, agentID, documentID string) string {
	return string(key[len(makeDocumentPrefix(agentID, documentID)):])
}
