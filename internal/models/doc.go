// Package models defines the data shared by the proxy, the resolver and the player.
//
// # Upstream Shapes
//
// [TrackDescriptor], [Playlist] and [StreamSet] mirror the JSON documents the media API returns
// and the proxy relays verbatim. Only the fields the resolver and player read are declared;
// everything else is ignored on decode.
//
// # Access Tokens
//
// [AccessToken] is server-side only. It is produced by the token exchanger, owned by the
// token cache and never written to a proxy response.
package models
