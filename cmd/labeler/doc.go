// Command labeler generates training labels for image datasets.
//
// The tag and caption commands run a single annotator over a directory and
// write one .txt label per image. The hybrid command runs both as child
// processes of itself and merges their output.
package main
