// Package posts maps the store's flat file namespace to typed posts.
//
// A post is one metadata file named {week}_{author}_{millis}.json. A voice
// post additionally owns fragment files {stem}_chunk{i}.txt holding its
// base64 audio. A voice post whose fragments are not all present is treated
// as absent, so a partially applied write never renders.
package posts
