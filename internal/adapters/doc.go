// Package adapters implements the collaborator capability contracts:
// the chat-channel adapter (TG), the target-service adapters (YT, SP),
// and the audio downloader, plus the shared bounded-retry policy
// delegates to "the adapters" rather than the sync core.
//
// Every adapter is a narrow interface so internal/sync depends only on
// the capability contract, never a concrete client.
package adapters
