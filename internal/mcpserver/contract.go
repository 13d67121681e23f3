package mcpserver

// FrontmatterContract describes the document format that LLM consumers
// should follow when creating or preparing documents for export.
const FrontmatterContract = `# Raido Export Contract

Documents exported to the content service SHOULD follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title         # mapped metadata fields depend on the route
tags: tag-one, tag-two              # commaList-transformed fields are comma-separated strings
hero: images/banner.png             # image fields may reference vault files or URLs
---

Body text in standard Markdown.

Embed images as ![[images/photo.png]] or ![alt text](images/photo.png).
` + "```" + `

## Rules

1. **YAML frontmatter** sits between ` + "```" + `---` + "```" + ` fences at the very start of
   the file. Documents without frontmatter export with an empty metadata
   block; any field a route marks required must then be present some other
   way or the export fails validation.
2. **Field names** are defined per route (see the list_routes tool): each
   output field maps from a metadata key or from the body.
3. **Images** may be vault-relative paths or external http(s) URLs. Both
   are uploaded to the content service during export and the references in
   the document are rewritten to the uploaded asset URLs. Recognized
   extensions: png, jpg, jpeg, gif, bmp, webp, svg (case-insensitive).
4. **Re-exports are safe.** Already-migrated references (URLs containing
   the service's /uploads/ segment) are left alone, and unchanged documents
   are skipped unless forced.
5. **Encoding** is UTF-8 with a trailing newline.
`
