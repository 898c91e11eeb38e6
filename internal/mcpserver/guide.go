package mcpserver

// Guide is served as the randpic://guide resource.
const Guide = `# randpic

randpic answers a trigger word with a random image from a named collection.

## Triggers

- A **keyword** names a collection. Names are single directory names: no
  slashes, no leading dot, at most 64 characters.
- An **alias** is another word for an existing keyword. Keywords and aliases
  share one namespace; a word is never both.
- A trigger that is neither gets no image and costs nothing.

## Quota

Every user has a quota that refills to the configured ceiling on a fixed
interval. Each delivered image costs one unit. Asking for an empty collection
also costs one unit.

## Adding images

` + "`add_image`" + ` accepts an http(s) URL or a base64 data URI. Content is
deduplicated per keyword by hash, so adding the same picture twice reports
` + "`stored: false`" + ` the second time. Unknown keywords are created on the fly.
`
