// Package avatar resizes uploaded profile pictures and stores them on disk
// or in an S3 compatible bucket.
//
// [Service] implements phonebook.AvatarService. New accounts get a
// Gravatar URL derived from their email; uploads are decoded, resized to
// 250x250 and written as <userID><ext> through a [Storage].
package avatar
